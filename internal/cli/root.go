// Package cli implements reviewctl, a command line client for the plan review API.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"permit-backend/internal/reviewclient"
	"permit-backend/internal/reviews"
)

const defaultAPIURL = "http://localhost:5001/api"

// API is the subset of the review API the commands call.
type API interface {
	reviewclient.Boundary
	ListRecent(ctx context.Context, count int) ([]reviews.Review, error)
}

type app struct {
	v         *viper.Viper
	newClient func(baseURL, token string) (API, error)
}

// NewRootCommand builds the reviewctl command tree. Settings come from flags
// first, then REVIEWCTL_* environment variables.
func NewRootCommand() *cobra.Command {
	return newRootCommand(defaultClient)
}

func newRootCommand(newClient func(baseURL, token string) (API, error)) *cobra.Command {
	a := &app{v: viper.New(), newClient: newClient}
	a.v.SetEnvPrefix("REVIEWCTL")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	a.v.SetDefault("api-url", defaultAPIURL)

	root := &cobra.Command{
		Use:           "reviewctl",
		Short:         "Submit solar plans for review and inspect results",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("api-url", defaultAPIURL, "Base URL of the API, including /api")
	root.PersistentFlags().String("token", "", "Bearer token used to attribute uploads")
	_ = a.v.BindPFlags(root.PersistentFlags())

	root.AddCommand(a.uploadCommand(), a.getCommand(), a.listCommand())
	return root
}

// Execute runs reviewctl against os.Args.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func defaultClient(baseURL, token string) (API, error) {
	return reviewclient.New(baseURL, reviewclient.WithToken(token))
}

func (a *app) client() (API, error) {
	return a.newClient(a.v.GetString("api-url"), a.v.GetString("token"))
}

func (a *app) uploadCommand() *cobra.Command {
	var (
		city     string
		attempts int
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a plan and wait for its review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read plan: %w", err)
			}
			api, err := a.client()
			if err != nil {
				return err
			}
			poller := &reviewclient.Poller{
				Boundary: api,
				OnAttempt: func(attempt int, r reviews.Review) {
					fmt.Fprintf(cmd.ErrOrStderr(), "attempt %d: %s %s\n", attempt, r.ID, r.Status())
				},
			}
			review, err := poller.UploadAndAwait(cmd.Context(), image, filepath.Base(args[0]), city, attempts, interval)
			var timeout *reviewclient.TimeoutError
			if errors.As(err, &timeout) && review.ID != "" {
				if printErr := printJSON(cmd.OutOrStdout(), review); printErr != nil {
					return printErr
				}
				return err
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), review)
		},
	}
	cmd.Flags().StringVar(&city, "city", "", "Jurisdiction whose rules apply")
	cmd.Flags().IntVar(&attempts, "attempts", reviewclient.DefaultMaxAttempts, "Maximum number of status polls")
	cmd.Flags().DurationVar(&interval, "interval", reviewclient.DefaultInterval, "Delay between polls")
	return cmd
}

func (a *app) getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print one review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.client()
			if err != nil {
				return err
			}
			review, err := api.GetReview(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), review)
		},
	}
}

func (a *app) listCommand() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the most recent reviews",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.client()
			if err != nil {
				return err
			}
			items, err := api.ListRecent(cmd.Context(), count)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), items)
		},
	}
	cmd.Flags().IntVar(&count, "count", 10, "Number of reviews to list (1-50)")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
