package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/district-census/internal/model"
	"github.com/sells-group/district-census/internal/publish"
	"github.com/sells-group/district-census/internal/registry"
	"github.com/sells-group/district-census/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the city registry, results and run history over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		if port, _ := cmd.Flags().GetInt("port"); port > 0 {
			cfg.Server.Port = port
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return eris.Wrap(err, "serve: init store")
		}
		defer st.Close() //nolint:errcheck

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           buildRouter(cfg.Registry.Path, cfg.Data.ResultsDir, st),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("serve: listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "serve: listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("serve: shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}

// api serves read-only views over the registry, result files and run store.
type api struct {
	registryPath string
	resultsDir   string
	store        store.Store
}

func buildRouter(registryPath, resultsDir string, st store.Store) http.Handler {
	a := &api{registryPath: registryPath, resultsDir: resultsDir, store: st}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSONStatus(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api", func(r chi.Router) {
		r.Get("/cities", a.listCities)
		r.Get("/cities/{id}", a.getCity)
		r.Get("/runs", a.listRuns)
	})
	return r
}

// listCities re-reads the registry on every request.
func (a *api) listCities(w http.ResponseWriter, _ *http.Request) {
	reg, err := registry.Load(a.registryPath)
	if err != nil {
		zap.L().Error("serve: load registry", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "registry unavailable")
		return
	}
	cities := reg.Cities
	if cities == nil {
		cities = []registry.City{}
	}
	writeJSONStatus(w, http.StatusOK, cities)
}

func (a *api) getCity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	reg, err := registry.Load(a.registryPath)
	if err != nil {
		zap.L().Error("serve: load registry", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "registry unavailable")
		return
	}
	c, ok := reg.Find(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown city "+id)
		return
	}

	f, err := os.Open(filepath.Join(a.resultsDir, filepath.FromSlash(c.File)))
	if err != nil {
		writeError(w, http.StatusNotFound, "no results for "+id)
		return
	}
	defer f.Close() //nolint:errcheck

	w.Header().Set("Content-Type", publish.GeoJSONContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		zap.L().Warn("serve: write city results", zap.String("id", id), zap.Error(err))
	}
}

func (a *api) listRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{
		Status: model.RunStatus(q.Get("status")),
		State:  strings.ToUpper(q.Get("state")),
		City:   q.Get("city"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	if a.store == nil {
		writeError(w, http.StatusServiceUnavailable, "run history unavailable")
		return
	}
	runs, err := a.store.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("serve: list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "run history unavailable")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSONStatus(w, http.StatusOK, runs)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSONStatus(w, status, map[string]string{"error": msg})
}
