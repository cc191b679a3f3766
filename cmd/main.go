package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	api "go.miloapis.com/email-provider-revue/cmd/api"
	manager "go.miloapis.com/email-provider-revue/cmd/manager"
	version "go.miloapis.com/email-provider-revue/cmd/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "email-provider-revue",
		Short: "Revue is the newsletter provider for Milo",
		Long:  "A Kubernetes controller that subscribes Milo newsletter contacts on Revue, and a command line client for the Revue API.",
	}

	rootCmd.AddCommand(manager.CreateManagerCommand())
	rootCmd.AddCommand(api.CreateAPICommand())
	rootCmd.AddCommand(version.NewVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
