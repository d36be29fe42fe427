// Package main provides atlasctl, a terminal client for the Atlas tutor.
//
// Usage:
//
//	atlasctl [flags] <command> [args]
//
// Commands:
//
//	chat        - talk to a tutor (greets when no message is given)
//	exercise    - generate and answer one practice exercise
//	tts         - synthesize text to a WAV file
//	transcribe  - transcribe an audio file
//	progress    - show level, XP and streak of a session
//
// Configuration is read from the environment and .env, like the API server.
package main

import (
	"fmt"
	"os"

	"github.com/zhouzirui/atlas/backend/cmd/tools/atlasctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, commands.ErrorStyle.Render("Error:"), err)
		os.Exit(1)
	}
}
