package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/atlas/backend/internal/app"
	speechmodel "github.com/zhouzirui/atlas/backend/internal/model/speech"
)

var (
	ttsVoice   string
	ttsOutput  string
	asrLang    string
	asrFormat  string
	errNoVoice = errors.New("speech unavailable: GEMINI_API_KEY is not set")
)

var ttsCmd = &cobra.Command{
	Use:   "tts <text...>",
	Short: "Synthesize speech to a WAV file",
	Long: `Synthesize text with the configured TTS model and write a WAV file.

Example:
  atlasctl tts "Nice to meet you" --voice Puck -o hello.wav`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if a.Speech == nil {
				return errNoVoice
			}
			resp, err := a.Speech.SynthesizeSpeech(ctx, &speechmodel.TTSRequest{
				SessionID: sessionID,
				Text:      strings.Join(args, " "),
				Voice:     ttsVoice,
			})
			if err != nil {
				return err
			}

			path := ttsOutput
			if path == "" {
				path = fmt.Sprintf("tts-output-%d.%s", time.Now().Unix(), resp.Format)
			}
			if err := os.WriteFile(path, resp.AudioData, 0o644); err != nil {
				return fmt.Errorf("write audio: %w", err)
			}

			out := cmd.OutOrStdout()
			if outputJSON {
				return printResult(out, map[string]any{
					"file":       path,
					"voice":      resp.Voice,
					"sampleRate": resp.SampleRate,
					"durationMs": resp.Duration,
				}, true)
			}
			fmt.Fprintf(out, "%s %s %s\n", SuccessStyle.Render("saved"), path,
				DimStyle.Render(fmt.Sprintf("(%dms, voice %s)", resp.Duration, resp.Voice)))
			return nil
		})
	},
}

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <audio-file>",
	Short: "Transcribe an audio file",
	Long: `Transcribe an audio file with the configured Gemini model.

The format is taken from the file extension unless --format is set.

Example:
  atlasctl transcribe sample.webm --lang en-US`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if a.Speech == nil {
				return errNoVoice
			}
			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open audio: %w", err)
			}
			defer file.Close()

			format := asrFormat
			if format == "" {
				format = strings.TrimPrefix(strings.ToLower(filepath.Ext(args[0])), ".")
			}

			resp, err := a.Speech.TranscribeAudio(ctx, &speechmodel.ASRRequest{
				SessionID: sessionID,
				AudioData: file,
				Format:    format,
				Language:  asrLang,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outputJSON {
				return printResult(out, resp, true)
			}
			fmt.Fprintln(out, resp.Text)
			return nil
		})
	},
}

func init() {
	ttsCmd.Flags().StringVar(&ttsVoice, "voice", "", "prebuilt voice name (default GEMINI_VOICE)")
	ttsCmd.Flags().StringVarP(&ttsOutput, "output", "o", "", "output WAV path")
	transcribeCmd.Flags().StringVar(&asrLang, "lang", "", "language hint, e.g. en-US")
	transcribeCmd.Flags().StringVar(&asrFormat, "format", "", "audio format override (wav, webm, mp3, ogg, pcm)")
}
