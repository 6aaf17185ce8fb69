package main

import (
	"fmt"
	"os"

	"transcribot/cmd/transcribot/cmd"
	"transcribot/internal/config"
)

func main() {
	// Variables already set in the environment take precedence over .env.
	if _, err := config.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration warning: %v\n", err)
	}

	cmd.Execute()
}
