package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/feedmill/feedmill/internal/config"
	"github.com/feedmill/feedmill/internal/export"
	"github.com/feedmill/feedmill/internal/store"
)

func newBrandCommand(cctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "brand",
		Short: "Manage brands and pending labels",
	}
	cmd.AddCommand(newBrandListCommand(cctx))
	cmd.AddCommand(newBrandAddCommand(cctx))
	cmd.AddCommand(newBrandPendingCommand(cctx))
	cmd.AddCommand(newBrandResolveCommand(cctx))
	cmd.AddCommand(newBrandNewCommand(cctx))
	cmd.AddCommand(newBrandIgnoreCommand(cctx))
	cmd.AddCommand(newBrandReverifyCommand(cctx))
	cmd.AddCommand(newBrandExportCommand(cctx))
	return cmd
}

func parsePendingID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid pending brand id %q", arg)
	}
	return id, nil
}

func newBrandListCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known brands",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cctx.withStore(func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				allBrands, err := st.ListBrands(ctx)
				if err != nil {
					return err
				}
				if cctx.jsonOutput() {
					return writeJSON(cmd, allBrands)
				}
				rows := make([][]string, 0, len(allBrands))
				for _, b := range allBrands {
					rows = append(rows, []string{
						strconv.FormatInt(b.ID, 10),
						b.Name,
						b.Manufacturer,
						strings.Join(b.AliasList(), ", "),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Name", "Manufacturer", "Aliases"}, rows, 0))
				return nil
			})
		},
	}
}

func newBrandAddCommand(cctx *commandContext) *cobra.Command {
	var manufacturer string
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a brand",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cctx.withStore(func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				brand, err := st.CreateBrand(ctx, args[0], manufacturer)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created brand %s (id %d)\n", brand.Name, brand.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&manufacturer, "manufacturer", "", "Manufacturer name")
	return cmd
}

func newBrandPendingCommand(cctx *commandContext) *cobra.Command {
	var state string
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List unresolved brand labels, busiest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cctx.withStore(func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				pending, err := st.ListPendingBrands(ctx, store.PendingState(state))
				if err != nil {
					return err
				}
				if cctx.jsonOutput() {
					return writeJSON(cmd, pending)
				}
				rows := make([][]string, 0, len(pending))
				for _, p := range pending {
					suggested := "-"
					if p.SuggestedBrandID != 0 {
						suggested = strconv.FormatInt(p.SuggestedBrandID, 10)
					}
					rows = append(rows, []string{
						strconv.FormatInt(p.ID, 10),
						p.RawLabel,
						p.NormalizedLabel,
						strconv.Itoa(p.ProductCount),
						string(p.State),
						suggested,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Label", "Normalized", "Products", "State", "Suggested"},
					rows, 0, 3))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&state, "state", string(store.PendingOpen), "Filter by state (pending|validated|ignored|new_brand)")
	return cmd
}

func newBrandResolveCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <pending-id> <brand-id>",
		Short: "Validate a pending label against an existing brand",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pendingID, err := parsePendingID(args[0])
			if err != nil {
				return err
			}
			brandID, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid brand id %q", args[1])
			}
			return cctx.withStore(func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				resolved, err := cctx.newResolver(cfg, st).Resolve(ctx, pendingID, brandID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Resolved %d pending label(s)\n", resolved)
				return nil
			})
		},
	}
}

func newBrandNewCommand(cctx *commandContext) *cobra.Command {
	var manufacturer string
	cmd := &cobra.Command{
		Use:   "new <pending-id>",
		Short: "Create a brand from a pending label",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pendingID, err := parsePendingID(args[0])
			if err != nil {
				return err
			}
			return cctx.withStore(func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				brand, resolved, err := cctx.newResolver(cfg, st).ResolveAsNew(ctx, pendingID, manufacturer)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created brand %s (id %d), resolved %d pending label(s)\n",
					brand.Name, brand.ID, resolved)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&manufacturer, "manufacturer", "", "Manufacturer name")
	return cmd
}

func newBrandIgnoreCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ignore <pending-id>",
		Short: "Ignore a pending label",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pendingID, err := parsePendingID(args[0])
			if err != nil {
				return err
			}
			return cctx.withStore(func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				if err := st.IgnorePendingBrand(ctx, pendingID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Ignored pending label %d\n", pendingID)
				return nil
			})
		},
	}
}

func newBrandReverifyCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reverify",
		Short: "Re-check all open pending labels against the brand catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cctx.withStore(func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				resolved, err := cctx.newResolver(cfg, st).ReverifyAll(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Resolved %d pending label(s)\n", resolved)
				return nil
			})
		},
	}
}

func newBrandExportCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Export the brand catalog as semicolon CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cctx.withStore(func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				path, err := export.New(st, cfg).Brands(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
				return nil
			})
		},
	}
}
