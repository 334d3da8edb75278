package main

import (
	"fmt"
	"os"

	"github.com/LeonardoBeccarini/agriassist/cmd/agriassist/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
