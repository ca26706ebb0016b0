// Command supportbot is the entry point for the document QA service.
// It provides a CLI (via Cobra) for running the HTTP server, ingesting
// documents from the command line, and asking one-shot questions.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/supportbot-go/cmd/supportbot/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
