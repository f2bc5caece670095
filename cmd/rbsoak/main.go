package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var mainCommand = &cobra.Command{
	Use:   "rbsoak",
	Short: "Soak the red-black tree containers against a model",
	// Usage on a failed soak hides the report.
	SilenceUsage: true,
}

func main() {
	if err := mainCommand.Execute(); err != nil {
		if code, ok := err.(exitCodeError); ok {
			os.Exit(int(code))
		}
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
