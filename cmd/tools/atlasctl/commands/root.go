package commands

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/atlas/backend/internal/app"
	"github.com/zhouzirui/atlas/backend/internal/config"
)

var (
	// Global flags
	tutorID    string
	sessionID  string
	outputJSON bool
	verbose    bool
	timeout    time.Duration
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "atlasctl",
	Short: "Atlas tutor CLI",
	Long: `atlasctl drives the Atlas tutor services from a terminal.

It builds the same services as the API server from environment variables
(GEMINI_API_KEY, AI_PROVIDER, STORE_DRIVER, ...). Use a persistent store
(STORE_DRIVER=badger or sqlite) to keep sessions between invocations.

Examples:
  atlasctl chat --tutor atlas
  atlasctl chat -s <session> "How do I say 'I am tired'?"
  atlasctl exercise -s <session> --answer "went"
  atlasctl tts "Nice to meet you" -o hello.wav
  atlasctl transcribe sample.webm --lang en-US
  atlasctl progress -s <session>`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&tutorID, "tutor", "t", "atlas", "tutor to open new sessions with")
	rootCmd.PersistentFlags().StringVarP(&sessionID, "session", "s", "", "existing session id (a new session is created when empty)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output as JSON (for piping)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "keep service logs on stderr")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 90*time.Second, "overall request timeout")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(exerciseCmd)
	rootCmd.AddCommand(ttsCmd)
	rootCmd.AddCommand(transcribeCmd)
	rootCmd.AddCommand(progressCmd)
}

// withApp loads configuration, builds the services and runs fn under the
// command timeout.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	if !verbose {
		log.SetOutput(io.Discard)
	}
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

// ensureSession returns the --session flag or opens a new session with
// the --tutor flag.
func ensureSession(ctx context.Context, cmd *cobra.Command, a *app.App) (string, error) {
	if sessionID != "" {
		return sessionID, nil
	}
	session, err := a.Chat.CreateSession(ctx, tutorID)
	if err != nil {
		return "", err
	}
	if !outputJSON {
		fmt.Fprintln(cmd.OutOrStdout(), DimStyle.Render("session "+session.ID))
	}
	return session.ID, nil
}
