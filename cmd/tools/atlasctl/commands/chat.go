package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/atlas/backend/internal/app"
	chatService "github.com/zhouzirui/atlas/backend/internal/service/chat"
)

var chatStream bool

var chatCmd = &cobra.Command{
	Use:   "chat [message...]",
	Short: "Send a message to the tutor",
	Long: `Send one message to the tutor and print the reply.

Without a message the tutor's opening greeting is requested instead.

Examples:
  atlasctl chat
  atlasctl chat -s <session> --stream "What is the past of 'go'?"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			sid, err := ensureSession(ctx, cmd, a)
			if err != nil {
				return err
			}
			_, t, err := a.Chat.SessionTutor(ctx, sid)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			message := strings.TrimSpace(strings.Join(args, " "))
			streaming := chatStream && message != "" && !outputJSON
			if !outputJSON {
				fmt.Fprintln(out, TitleStyle.Render(t.Name))
			}

			var turn chatService.Turn
			switch {
			case message == "":
				turn, err = a.Chat.Greet(ctx, sid)
			case streaming:
				turn, err = a.Chat.Stream(ctx, sid, message, func(delta string) {
					fmt.Fprint(out, delta)
				})
				fmt.Fprintln(out)
			default:
				turn, err = a.Chat.Send(ctx, sid, message)
			}
			if err != nil {
				return err
			}

			if outputJSON {
				return printResult(out, turn, true)
			}
			if !streaming {
				fmt.Fprintln(out, turn.Reply.Text)
			}
			if turn.Failed {
				fmt.Fprintln(out, ErrorStyle.Render("model unavailable, fallback reply shown"))
			}
			if turn.XPAwarded > 0 {
				fmt.Fprintln(out, SuccessStyle.Render(fmt.Sprintf("+%d XP", turn.XPAwarded)))
			}
			fmt.Fprintln(out, DimStyle.Render(progressLine(turn.Progress)))
			return nil
		})
	},
}

func init() {
	chatCmd.Flags().BoolVar(&chatStream, "stream", false, "print the reply as it is generated")
}
