package version

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.miloapis.com/email-provider-revue/pkg/version"
)

// NewVersionCommand creates the version subcommand
func NewVersionCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Print version information for email-provider-revue, including the User-Agent sent to Revue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runVersion(cmd.OutOrStdout(), output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format (text, json)")

	return cmd
}

type versionOutput struct {
	version.Info
	UserAgent string `json:"userAgent"`
}

func runVersion(w io.Writer, output string) error {
	info := versionOutput{Info: version.Get(), UserAgent: version.UserAgent()}

	switch output {
	case "json":
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal version info: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "text":
		_, err := fmt.Fprintf(w, "%s\nUser Agent: %s\n", info.Info.String(), info.UserAgent)
		return err
	default:
		return fmt.Errorf("unsupported output format: %s", output)
	}
}
