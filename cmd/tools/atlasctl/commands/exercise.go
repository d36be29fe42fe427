package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/atlas/backend/internal/app"
)

var exerciseAnswer string

var exerciseCmd = &cobra.Command{
	Use:   "exercise",
	Short: "Generate one practice exercise and grade the answer",
	Long: `Generate a practice exercise for the session's tutor, read an answer
and print the feedback. Multiple choice answers may be given by number.

Examples:
  atlasctl exercise
  atlasctl exercise -s <session> --answer 2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if a.Practice == nil {
				return errors.New("practice unavailable: configure a model provider")
			}
			sid, err := ensureSession(ctx, cmd, a)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			view, err := a.Practice.Generate(ctx, sid)
			if err != nil {
				return err
			}

			var body strings.Builder
			body.WriteString(LabelStyle.Render(view.Question))
			for i, opt := range view.Options {
				fmt.Fprintf(&body, "\n  %d. %s", i+1, opt)
			}
			fmt.Fprintln(out, BoxStyle.Render(body.String()))

			answer := exerciseAnswer
			if answer == "" {
				fmt.Fprint(out, DimStyle.Render("answer> "))
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read answer: %w", err)
				}
				answer = line
			}

			feedback, err := a.Practice.Check(ctx, sid, resolveOption(answer, view.Options))
			if err != nil {
				return err
			}
			if outputJSON {
				return printResult(out, feedback, true)
			}

			if feedback.IsCorrect {
				fmt.Fprintln(out, SuccessStyle.Render(fmt.Sprintf("Correct! +%d XP", feedback.XPAwarded)))
			} else {
				fmt.Fprintln(out, ErrorStyle.Render("Not quite. Answer: "+feedback.CorrectAnswer))
			}
			if feedback.Explanation != "" {
				fmt.Fprintln(out, feedback.Explanation)
			}

			p, err := a.Progress.Get(ctx, sid)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, DimStyle.Render(progressLine(p)))
			return nil
		})
	},
}

func init() {
	exerciseCmd.Flags().StringVar(&exerciseAnswer, "answer", "", "answer to submit (read from stdin when empty)")
}
