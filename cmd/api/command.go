package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"go.miloapis.com/email-provider-revue/pkg/revue"
)

const tokenEnv = "REVUE_API_TOKEN"

type options struct {
	token   string
	host    string
	output  string
	timeout time.Duration
	verbose bool
}

func (o *options) client() (*revue.Client, error) {
	token := o.token
	if token == "" {
		token = os.Getenv(tokenEnv)
	}
	if token == "" {
		return nil, fmt.Errorf("a token is required: pass --token or set %s", tokenEnv)
	}

	return revue.NewClient(token,
		revue.WithHost(o.host),
		revue.WithHTTPClient(&http.Client{Timeout: o.timeout}),
	)
}

func (o *options) context(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if o.verbose {
		ctx = logr.NewContext(ctx, zap.New(zap.UseDevMode(true), zap.WriteTo(cmd.ErrOrStderr())))
	}
	return ctx
}

func (o *options) print(w io.Writer, resp *revue.Response) error {
	switch o.output {
	case "json":
		_, err := fmt.Fprintln(w, resp.AsJSON())
		return err
	case "text":
		v, err := resp.AsValue()
		if err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to format response: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	default:
		return fmt.Errorf("unsupported output format: %s", o.output)
	}
}

// run wraps a single API call into a cobra RunE.
func (o *options) run(call func(ctx context.Context, c *revue.Client, args []string) (*revue.Response, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		c, err := o.client()
		if err != nil {
			return err
		}
		resp, err := call(o.context(cmd), c, args)
		if err != nil {
			return err
		}
		return o.print(cmd.OutOrStdout(), resp)
	}
}

// CreateAPICommand returns the api command with one subcommand per Revue resource.
func CreateAPICommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "api",
		Short: "Call the Revue API",
		Long:  "Call the Revue API directly and print the response body.",
	}

	cmd.PersistentFlags().StringVar(&opts.token, "token", "", "Revue API token. Defaults to $"+tokenEnv+".")
	cmd.PersistentFlags().StringVar(&opts.host, "host", "https://www.getrevue.co/api",
		"The Revue API host. The API version is appended to it.")
	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "text", "Output format (text, json)")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Timeout for the API call.")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log requests to stderr.")

	cmd.AddCommand(
		newMeCommand(opts),
		newListsCommand(opts),
		newIssuesCommand(opts),
		newSubscribersCommand(opts),
		newUnsubscribedCommand(opts),
		newSubscribeCommand(opts),
		newItemsCommand(opts),
		newAddItemCommand(opts),
		newExportsCommand(opts),
		newExportListCommand(opts),
	)

	return cmd
}

func newMeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the account the token belongs to",
		Args:  cobra.NoArgs,
		RunE: opts.run(func(ctx context.Context, c *revue.Client, _ []string) (*revue.Response, error) {
			return c.Me(ctx)
		}),
	}
}

func newListsCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "lists [id]",
		Short: "Show all lists, or one list by id",
		Args:  cobra.MaximumNArgs(1),
		RunE: opts.run(func(ctx context.Context, c *revue.Client, args []string) (*revue.Response, error) {
			if len(args) == 1 {
				return c.ListByID(ctx, args[0])
			}
			return c.Lists(ctx)
		}),
	}
}

func newIssuesCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:       "issues [latest|current]",
		Short:     "Show issues",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(revue.StageLatest), string(revue.StageCurrent)},
		RunE: opts.run(func(ctx context.Context, c *revue.Client, args []string) (*revue.Response, error) {
			stage := revue.StageDefault
			if len(args) == 1 {
				var err error
				if stage, err = revue.ParseStage(args[0]); err != nil {
					return nil, err
				}
			}
			return c.Issues(ctx, stage)
		}),
	}
}

func newSubscribersCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "subscribers",
		Short: "Show active subscribers",
		Args:  cobra.NoArgs,
		RunE: opts.run(func(ctx context.Context, c *revue.Client, _ []string) (*revue.Response, error) {
			return c.Subscribers(ctx)
		}),
	}
}

func newUnsubscribedCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "unsubscribed",
		Short: "Show subscribers who left",
		Args:  cobra.NoArgs,
		RunE: opts.run(func(ctx context.Context, c *revue.Client, _ []string) (*revue.Response, error) {
			return c.Unsubscribed(ctx)
		}),
	}
}

func newSubscribeCommand(opts *options) *cobra.Command {
	var (
		firstName, lastName string
		doubleOptIn         bool
	)

	cmd := &cobra.Command{
		Use:   "subscribe <email>",
		Short: "Add a subscriber",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = opts.run(func(ctx context.Context, c *revue.Client, args []string) (*revue.Response, error) {
		fields := map[string]any{}
		if cmd.Flags().Changed("first-name") {
			fields["first_name"] = firstName
		}
		if cmd.Flags().Changed("last-name") {
			fields["last_name"] = lastName
		}
		if cmd.Flags().Changed("double-opt-in") {
			fields["double_opt_in"] = doubleOptIn
		}
		return c.Subscribe(ctx, args[0], fields)
	})

	cmd.Flags().StringVar(&firstName, "first-name", "", "First name of the subscriber")
	cmd.Flags().StringVar(&lastName, "last-name", "", "Last name of the subscriber")
	cmd.Flags().BoolVar(&doubleOptIn, "double-opt-in", false, "Ask the subscriber to confirm by email")

	return cmd
}

func newItemsCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "items",
		Short: "Show the items of the current issue",
		Args:  cobra.NoArgs,
		RunE: opts.run(func(ctx context.Context, c *revue.Client, _ []string) (*revue.Response, error) {
			return c.Items(ctx)
		}),
	}
}

func newAddItemCommand(opts *options) *cobra.Command {
	var fields []string

	cmd := &cobra.Command{
		Use:   "add-item <issue-id>",
		Short: "Attach an item to an issue",
		Args:  cobra.ExactArgs(1),
		RunE: opts.run(func(ctx context.Context, c *revue.Client, args []string) (*revue.Response, error) {
			data, err := parseFields(fields)
			if err != nil {
				return nil, err
			}
			return c.AddItems(ctx, args[0], data)
		}),
	}

	cmd.Flags().StringArrayVarP(&fields, "field", "f", nil, "Item field as key=value, e.g. url=https://example.com. Repeatable.")

	return cmd
}

func newExportsCommand(opts *options) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "exports [id]",
		Short: "Show all exports, or one export by id",
		Args:  cobra.MaximumNArgs(1),
		RunE: opts.run(func(ctx context.Context, c *revue.Client, args []string) (*revue.Response, error) {
			switch {
			case len(args) == 1:
				return c.ExportByID(ctx, args[0])
			case raw:
				return c.RawExports(ctx)
			default:
				return c.Exports(ctx)
			}
		}),
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print exports as positional tuples, as Revue sends them")

	return cmd
}

func newExportListCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "export-list <list-id>",
		Short: "Start an export of a list",
		Args:  cobra.ExactArgs(1),
		RunE: opts.run(func(ctx context.Context, c *revue.Client, args []string) (*revue.Response, error) {
			return c.ExportList(ctx, args[0])
		}),
	}
}

func parseFields(pairs []string) (url.Values, error) {
	data := url.Values{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid field %q: expected key=value", pair)
		}
		data.Add(key, value)
	}
	return data, nil
}
