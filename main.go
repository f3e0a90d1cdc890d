package main

import (
	"fmt"
	"os"

	"milda_bot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "milda-bot:", err)
		os.Exit(1)
	}
}
