package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/feedmill/feedmill/internal/config"
	"github.com/feedmill/feedmill/internal/store"
)

func newRunCommand(cctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Manage import runs",
	}
	cmd.AddCommand(newRunEnqueueCommand(cctx))
	cmd.AddCommand(newRunNowCommand(cctx))
	cmd.AddCommand(newRunListCommand(cctx))
	cmd.AddCommand(newRunShowCommand(cctx))
	cmd.AddCommand(newRunResetCommand(cctx))
	return cmd
}

func parseRunID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid run id %q", arg)
	}
	return id, nil
}

func newRunEnqueueCommand(cctx *commandContext) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "enqueue <provider>",
		Short: "Queue an import run for the daemon to pick up",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cctx.withStore(func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				provider, err := providerByCode(ctx, st, args[0])
				if err != nil {
					return err
				}
				run, err := st.EnqueueRun(ctx, provider.ID, name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued run %d (%s) for %s\n", run.ID, run.Token, provider.Code)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Run label")
	return cmd
}

func newRunNowCommand(cctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "now <provider>",
		Short: "Queue and execute an import run immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cctx.withStore(func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				provider, err := providerByCode(ctx, st, args[0])
				if err != nil {
					return err
				}
				run, err := st.EnqueueRun(ctx, provider.ID, "manual "+time.Now().UTC().Format(time.RFC3339))
				if err != nil {
					return err
				}

				sched := cctx.newScheduler(cfg, st)
				executed, err := sched.ExecuteNow(ctx, run.ID)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Run %d finished with status %s\n", executed.ID, executed.Status)
				fmt.Fprintf(out, "  processed=%d created=%d updated=%d skipped=%d duplicates=%d errors=%d\n",
					executed.Counts.Processed, executed.Counts.Created, executed.Counts.Updated,
					executed.Counts.Skipped, executed.Counts.Duplicates, executed.Counts.Errors)
				if executed.LastError != "" {
					fmt.Fprintf(out, "  last error: %s\n", executed.LastError)
				}
				return nil
			})
		},
	}
	return cmd
}

func newRunListCommand(cctx *commandContext) *cobra.Command {
	var statusFilter string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cctx.withStore(func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				var statuses []store.RunStatus
				if statusFilter != "" {
					status, err := store.ParseRunStatus(statusFilter)
					if err != nil {
						return err
					}
					statuses = append(statuses, status)
				}
				runs, err := st.ListRuns(ctx, statuses...)
				if err != nil {
					return err
				}
				if cctx.jsonOutput() {
					return writeJSON(cmd, runs)
				}
				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					rows = append(rows, []string{
						strconv.FormatInt(run.ID, 10),
						run.Name,
						string(run.Status),
						strconv.Itoa(run.Counts.Processed),
						strconv.Itoa(run.Counts.Created),
						strconv.Itoa(run.Counts.Updated),
						strconv.Itoa(run.Counts.Errors),
						formatDuration(run.Duration()),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Name", "Status", "Processed", "Created", "Updated", "Errors", "Duration"},
					rows, 0, 3, 4, 5, 6, 7))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&statusFilter, "status", "", "Filter by status (pending|running|ok|failed)")
	return cmd
}

func newRunShowCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one run with its log and attachments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRunID(args[0])
			if err != nil {
				return err
			}
			return cctx.withStore(func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				run, err := st.GetRun(ctx, id)
				if err != nil {
					return err
				}
				if run == nil {
					return fmt.Errorf("run %d not found", id)
				}
				if cctx.jsonOutput() {
					return writeJSON(cmd, run)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Run %d (%s)\n", run.ID, run.Token)
				fmt.Fprintf(out, "  status:     %s\n", run.Status)
				fmt.Fprintf(out, "  files:      %d downloaded, %d imported\n", run.FilesDownloaded, run.FilesImported)
				fmt.Fprintf(out, "  rows:       %d processed, %d created, %d updated, %d skipped, %d duplicates, %d errors\n",
					run.Counts.Processed, run.Counts.Created, run.Counts.Updated,
					run.Counts.Skipped, run.Counts.Duplicates, run.Counts.Errors)
				if run.Counts.Processed > 0 {
					fmt.Fprintf(out, "  success:    %.1f%%\n", run.Counts.SuccessRate()*100)
				}
				if run.LastError != "" {
					fmt.Fprintf(out, "  last error: %s\n", run.LastError)
				}

				attachments, err := st.ListAttachments(ctx, run.ID)
				if err != nil {
					return err
				}
				for _, a := range attachments {
					fmt.Fprintf(out, "  attachment: %s (%s, %s, %d bytes)\n", a.Name, a.Kind, a.State, a.Size)
				}
				if run.Log != "" {
					fmt.Fprintln(out, "  log:")
					fmt.Fprint(out, run.Log)
				}
				return nil
			})
		},
	}
}

func newRunResetCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <id>",
		Short: "Return a failed run to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRunID(args[0])
			if err != nil {
				return err
			}
			return cctx.withStore(func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				if err := st.ResetRun(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Run %d reset to pending\n", id)
				return nil
			})
		},
	}
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}
