package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{
		Use:          "headliner",
		Short:        "Daily headline digest agent",
		SilenceUsage: true,
	}

	root.AddCommand(serveCMD(), runCMD(), chatCMD(), migrateCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
