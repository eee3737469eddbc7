package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"apidash/internal/catalog"
	"apidash/internal/config"
	"apidash/internal/dashboard"
	"apidash/internal/httpclient"
	"apidash/internal/logging"
	"apidash/internal/model"
	"apidash/internal/openapi"
	"apidash/internal/ui"
)

func newRootCmd() *cobra.Command {
	v := config.New()
	var configFile string

	root := &cobra.Command{
		Use:   "apidash",
		Short: "API testing dashboard",
		Long: `apidash is a terminal dashboard for exercising a fixed set of
JSONPlaceholder endpoints. Creating a post makes its id available to
"Get Comments by Post".

Settings come from flags, APIDASH_* environment variables and an optional
config file, in that order.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return config.ReadFile(v, configFile)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}

			log, closer, err := logging.Open(cfg.Debug, cfg.LogFile)
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx := cmd.Context()
			dash, err := dashboard.New(ctx, dashboard.Options{
				BaseURL:       cfg.BaseURL,
				Client:        httpclient.New(cfg.Timeout),
				Strict:        cfg.Strict,
				ValidateInput: cfg.ValidateInput,
				Logger:        &log,
			})
			if err != nil {
				return err
			}

			log.Info().Str("base_url", cfg.BaseURL).Dur("timeout", cfg.Timeout).Msg("starting")
			return ui.NewApp(ctx, dash, log).Run()
		},
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (yaml, json or toml)")
	cobra.CheckErr(config.AddFlags(v, root.PersistentFlags()))

	root.AddCommand(newEndpointsCmd())
	return root
}

func newEndpointsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "endpoints",
		Short: "List the endpoints the dashboard can call",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, err := openapi.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("load openapi document: %w", err)
			}
			printEndpoints(cmd.OutOrStdout(), catalog.List(), openapi.Operations(doc))
			return nil
		},
	}
}

func printEndpoints(w io.Writer, eps []model.Endpoint, ops []openapi.Operation) {
	opIDs := make(map[string]string, len(ops))
	for _, op := range ops {
		opIDs[op.Method+" "+op.Path] = op.OperationID
	}

	for i, ep := range eps {
		fmt.Fprintf(w, "%d. %-6s %-22s %s\n", i+1, ep.Method, ep.ID, ep.Description)
		if id := opIDs[ep.Method+" "+ep.Path]; id != "" {
			fmt.Fprintf(w, "   operation %s %s\n", id, ep.Path)
		}
		for _, r := range ep.Requires {
			fmt.Fprintf(w, "   requires %s as ?%s\n", r.Key, r.Param)
		}
		if len(ep.Produces) > 0 {
			keys := make([]string, 0, len(ep.Produces))
			for _, o := range ep.Produces {
				keys = append(keys, string(o.Key))
			}
			fmt.Fprintf(w, "   produces %s\n", strings.Join(keys, ", "))
		}
	}
}
