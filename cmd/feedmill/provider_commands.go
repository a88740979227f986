package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/feedmill/feedmill/internal/config"
	"github.com/feedmill/feedmill/internal/seed"
	"github.com/feedmill/feedmill/internal/store"
)

func newProviderCommand(cctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provider",
		Short: "Manage feed providers",
	}
	cmd.AddCommand(newProviderListCommand(cctx))
	cmd.AddCommand(newProviderAddCommand(cctx))
	cmd.AddCommand(newProviderSeedCommand(cctx))
	return cmd
}

func newProviderListCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cctx.withStore(func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				providers, err := st.ListProviders(ctx)
				if err != nil {
					return err
				}
				if cctx.jsonOutput() {
					return writeJSON(cmd, providers)
				}
				rows := make([][]string, 0, len(providers))
				for _, p := range providers {
					rows = append(rows, []string{
						p.Code, p.Name, p.MergeKey, p.FilePattern,
						yesNo(p.SkipExisting), yesNo(p.ScheduleActive),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Code", "Name", "Key", "Pattern", "Skip Existing", "Scheduled"}, rows))
				return nil
			})
		},
	}
}

func newProviderAddCommand(cctx *commandContext) *cobra.Command {
	var (
		name         string
		mergeKey     string
		filePattern  string
		skipExisting bool
	)
	cmd := &cobra.Command{
		Use:   "add <code>",
		Short: "Register a new provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cctx.withStore(func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				provider, err := st.CreateProvider(ctx, &store.Provider{
					Code:         args[0],
					Name:         name,
					MergeKey:     mergeKey,
					FilePattern:  filePattern,
					SkipExisting: skipExisting,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created provider %s (id %d)\n", provider.Code, provider.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&mergeKey, "merge-key", "", "Merge key column (default Matnr)")
	cmd.Flags().StringVar(&filePattern, "file-pattern", "", "Inbox glob pattern (default <code>*)")
	cmd.Flags().BoolVar(&skipExisting, "skip-existing", false, "Quarantine rows whose key already exists")
	return cmd
}

func newProviderSeedCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file>",
		Short: "Apply a YAML provider seed file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cctx.withStore(func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				f, err := seed.Load(args[0])
				if err != nil {
					return err
				}
				result, err := seed.Apply(ctx, st, f)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Seed applied: %d created, %d updated\n",
					result.Created, result.Updated)
				return nil
			})
		},
	}
}
