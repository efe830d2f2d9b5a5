package main

import (
	"os"

	"github.com/wonny/stratplan/cmd/stratplan/commands"
)

// main is the entry point for the stratplan CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/stratplan [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
