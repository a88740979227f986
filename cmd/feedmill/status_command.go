package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/feedmill/feedmill/internal/config"
	"github.com/feedmill/feedmill/internal/store"
)

func newStatusCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and catalog status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			daemonUp := false
			if cfg.Paths.APIBind != "" {
				if remote, err := fetchDaemonStatus(cfg.Paths.APIBind); err == nil {
					daemonUp = true
					if cctx.jsonOutput() {
						return writeJSON(cmd, remote)
					}
					fmt.Fprintf(out, "Daemon:   running (api %s)\n", cfg.Paths.APIBind)
					printHealth(out, remote.Health)
				}
			}
			if daemonUp {
				return nil
			}

			// No daemon answering; read the database directly.
			return cctx.withStore(func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				health, err := st.CheckHealth(ctx)
				if err != nil {
					return err
				}
				if cctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"running": false, "health": health})
				}
				fmt.Fprintln(out, "Daemon:   not reachable")
				fmt.Fprintf(out, "Database: %s\n", cfg.DatabasePath())
				printHealth(out, health)
				return nil
			})
		},
	}
}

type daemonStatus struct {
	Running      bool          `json:"running"`
	DatabasePath string        `json:"database_path"`
	LockFilePath string        `json:"lock_file_path"`
	Health       *store.Health `json:"health,omitempty"`
}

func fetchDaemonStatus(bind string) (*daemonStatus, error) {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + bind + "/api/status")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("daemon status returned %s", resp.Status)
	}
	var status daemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, err
	}
	return &status, nil
}

func printHealth(out io.Writer, h *store.Health) {
	if h == nil {
		return
	}
	fmt.Fprintf(out, "Providers:      %d\n", h.Providers)
	fmt.Fprintf(out, "Products:       %d\n", h.Products)
	fmt.Fprintf(out, "Brands:         %d\n", h.Brands)
	fmt.Fprintf(out, "Pending brands: %d\n", h.PendingBrands)
	fmt.Fprintf(out, "Staging rows:   %d\n", h.StagingRows)
	for _, status := range []store.RunStatus{store.RunPending, store.RunRunning, store.RunOK, store.RunFailed} {
		if count, ok := h.Runs[status]; ok && count > 0 {
			fmt.Fprintf(out, "Runs %-9s %d\n", string(status)+":", count)
		}
	}
}
