package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/atlas/backend/internal/app"
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show a session's level, XP and streak",
	RunE: func(cmd *cobra.Command, args []string) error {
		if sessionID == "" {
			return errors.New("--session is required")
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			p, err := a.Progress.Get(ctx, sessionID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if outputJSON {
				return printResult(out, p, true)
			}
			fmt.Fprintln(out, TitleStyle.Render("Progress"))
			return printResult(out, p, false)
		})
	},
}
