package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/feedmill/feedmill/internal/config"
	"github.com/feedmill/feedmill/internal/logging"
	"github.com/feedmill/feedmill/internal/store"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logging.WithComponent(logger, "api-server"),
		daemon: d,
	}

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", srv.handleStatus)
		r.Get("/providers", srv.handleProviders)
		r.Get("/runs", srv.handleListRuns)
		r.Post("/runs", srv.handleEnqueueRun)
		r.Route("/runs/{id}", func(r chi.Router) {
			r.Get("/", srv.handleGetRun)
			r.Post("/execute", srv.handleExecuteRun)
			r.Post("/reset", srv.handleResetRun)
		})
		r.Get("/brands/pending", srv.handlePendingBrands)
	})

	srv.server = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

type statusResponse struct {
	Running      bool          `json:"running"`
	DatabasePath string        `json:"database_path"`
	LockFilePath string        `json:"lock_file_path"`
	Health       *store.Health `json:"health,omitempty"`
}

type runResponse struct {
	ID              int64           `json:"id"`
	Token           string          `json:"token"`
	ProviderID      int64           `json:"provider_id"`
	Name            string          `json:"name"`
	Status          store.RunStatus `json:"status"`
	Processed       int             `json:"processed"`
	Created         int             `json:"created"`
	Updated         int             `json:"updated"`
	Skipped         int             `json:"skipped"`
	Errors          int             `json:"errors"`
	Duplicates      int             `json:"duplicates"`
	FilesDownloaded int             `json:"files_downloaded"`
	FilesImported   int             `json:"files_imported"`
	LastError       string          `json:"last_error,omitempty"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	EndedAt         *time.Time      `json:"ended_at,omitempty"`
}

func toRunResponse(run *store.Run) runResponse {
	return runResponse{
		ID:              run.ID,
		Token:           run.Token,
		ProviderID:      run.ProviderID,
		Name:            run.Name,
		Status:          run.Status,
		Processed:       run.Counts.Processed,
		Created:         run.Counts.Created,
		Updated:         run.Counts.Updated,
		Skipped:         run.Counts.Skipped,
		Errors:          run.Counts.Errors,
		Duplicates:      run.Counts.Duplicates,
		FilesDownloaded: run.FilesDownloaded,
		FilesImported:   run.FilesImported,
		LastError:       run.LastError,
		StartedAt:       run.StartedAt,
		EndedAt:         run.EndedAt,
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, statusResponse{
		Running:      status.Running,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
		Health:       status.Health,
	})
}

func (s *apiServer) handleProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := s.daemon.store.ListProviders(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"providers": providers})
}

func (s *apiServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	var statuses []store.RunStatus
	for _, value := range r.URL.Query()["status"] {
		status, err := store.ParseRunStatus(value)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		statuses = append(statuses, status)
	}

	runs, err := s.daemon.store.ListRuns(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunResponse(run))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

func (s *apiServer) handleEnqueueRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Provider string `json:"provider"`
		Name     string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	run, err := s.daemon.EnqueueRun(r.Context(), req.Provider, req.Name)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, toRunResponse(run))
}

func (s *apiServer) runFromPath(w http.ResponseWriter, r *http.Request) *store.Run {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid run id")
		return nil
	}
	run, err := s.daemon.store.GetRun(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return nil
	}
	if run == nil {
		s.writeError(w, http.StatusNotFound, "run not found")
		return nil
	}
	return run
}

func (s *apiServer) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run := s.runFromPath(w, r)
	if run == nil {
		return
	}
	attachments, err := s.daemon.store.ListAttachments(r.Context(), run.ID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"run":         toRunResponse(run),
		"log":         run.Log,
		"attachments": attachments,
	})
}

func (s *apiServer) handleExecuteRun(w http.ResponseWriter, r *http.Request) {
	run := s.runFromPath(w, r)
	if run == nil {
		return
	}
	executed, err := s.daemon.ExecuteRunNow(r.Context(), run.ID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, toRunResponse(executed))
}

func (s *apiServer) handleResetRun(w http.ResponseWriter, r *http.Request) {
	run := s.runFromPath(w, r)
	if run == nil {
		return
	}
	if err := s.daemon.store.ResetRun(r.Context(), run.ID); err != nil {
		if errors.Is(err, store.ErrRunStatusConflict) {
			s.writeError(w, http.StatusConflict, "only failed runs can be reset")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	reset, err := s.daemon.store.GetRun(r.Context(), run.ID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, toRunResponse(reset))
}

func (s *apiServer) handlePendingBrands(w http.ResponseWriter, r *http.Request) {
	state := store.PendingState(strings.TrimSpace(r.URL.Query().Get("state")))
	if state == "" {
		state = store.PendingOpen
	}
	pending, err := s.daemon.store.ListPendingBrands(r.Context(), state)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"pending": pending})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
