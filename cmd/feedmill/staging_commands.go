package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/feedmill/feedmill/internal/config"
	"github.com/feedmill/feedmill/internal/export"
	"github.com/feedmill/feedmill/internal/store"
)

func newStagingCommand(cctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "staging",
		Short: "Inspect and maintain quarantined rows",
	}
	cmd.AddCommand(newStagingListCommand(cctx))
	cmd.AddCommand(newStagingExportCommand(cctx))
	cmd.AddCommand(newStagingAnnotateCommand(cctx))
	cmd.AddCommand(newStagingPurgeCommand(cctx))
	return cmd
}

func newStagingListCommand(cctx *commandContext) *cobra.Command {
	var runID int64
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List quarantined rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cctx.withStore(func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				stagingRows, err := st.ListStagingRows(ctx, runID, limit)
				if err != nil {
					return err
				}
				if cctx.jsonOutput() {
					return writeJSON(cmd, stagingRows)
				}
				rows := make([][]string, 0, len(stagingRows))
				for _, r := range stagingRows {
					rows = append(rows, []string{
						strconv.FormatInt(r.ID, 10),
						strconv.FormatInt(r.RunID, 10),
						strconv.Itoa(r.RowNumber),
						r.Key,
						string(r.ErrorType),
						r.ExistingRef,
						r.ActionTaken,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Run", "Line", "Key", "Error", "Existing Ref", "Action"},
					rows, 0, 1, 2))
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&runID, "run", 0, "Limit to one run")
	cmd.Flags().IntVar(&limit, "limit", 200, "Maximum rows to show")
	return cmd
}

func newStagingExportCommand(cctx *commandContext) *cobra.Command {
	var runID int64
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export quarantined rows as semicolon CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cctx.withStore(func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				path, err := export.New(st, cfg).ErrorRows(ctx, runID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&runID, "run", 0, "Limit to one run")
	return cmd
}

func newStagingAnnotateCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "annotate <id> <note>",
		Short: "Record the action taken for a quarantined row",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid staging row id %q", args[0])
			}
			return cctx.withStore(func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				if err := st.AnnotateStagingRow(ctx, id, args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Annotated staging row %d\n", id)
				return nil
			})
		},
	}
}

func newStagingPurgeCommand(cctx *commandContext) *cobra.Command {
	var runID int64
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete quarantined rows in batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cctx.withStore(func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				result, err := st.PurgeStagingRows(ctx, runID, cfg.Import.PurgeBatchSize)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Purged %d rows in %d batches\n",
					result.Deleted, result.Batches)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&runID, "run", 0, "Limit to one run")
	return cmd
}
