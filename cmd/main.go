package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/complypilot/complypilot/cmd/service"
)

func main() {
	root := &cobra.Command{
		Use:   "complypilot",
		Short: "knowledge assistant",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("empty command")
		},
	}

	root.AddCommand(service.NewCommand(), service.NewProcessCommand(), service.NewInstallCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
