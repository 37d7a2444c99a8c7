package main

import (
	"fmt"
	"os"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
