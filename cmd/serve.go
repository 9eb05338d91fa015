package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/stopsearch-cli/internal/export"
	"github.com/sells-group/stopsearch-cli/internal/metrics"
	"github.com/sells-group/stopsearch-cli/internal/report"
)

var (
	servePort int
	serveDir  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve exported GeoJSON layers for a browser map",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		cfg.Server.Port = port
		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		dir := serveDir
		if dir == "" {
			dir = cfg.Export.Dir
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildMux(dir, metrics.New()),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port), zap.String("dir", dir))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

// layerInfo describes one servable layer.
type layerInfo struct {
	Name     string `json:"name"`
	Features int    `json:"features"`
	Bytes    int64  `json:"bytes"`
}

// buildMux routes the layer API. Layers are read from dir on every request
// so a concurrent fetch is picked up without a restart.
func buildMux(dir string, rec *metrics.Recorder) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/layers", func(w http.ResponseWriter, _ *http.Request) {
		layers, err := listLayers(dir, rec)
		if err != nil {
			zap.L().Error("list layers", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cannot list layers"})
			return
		}
		writeJSON(w, http.StatusOK, layers)
	})

	r.Get("/layers/{name}", func(w http.ResponseWriter, req *http.Request) {
		name := chi.URLParam(req, "name")
		if err := export.ValidateLayerName(name); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid layer name"})
			return
		}
		data, err := os.ReadFile(filepath.Join(dir, name+export.GeoJSONExt))
		if err != nil {
			if os.IsNotExist(err) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "layer not found"})
				return
			}
			zap.L().Error("read layer", zap.String("layer", name), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cannot read layer"})
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	})

	r.Get("/report", func(w http.ResponseWriter, _ *http.Request) {
		rep, err := report.Read(report.Path(dir, "fetch"))
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no report"})
			return
		}
		writeJSON(w, http.StatusOK, rep)
	})

	runs := &runMetrics{dir: dir, rec: rec}
	prom := promhttp.HandlerFor(rec.Registry(), promhttp.HandlerOpts{})
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		runs.sync()
		prom.ServeHTTP(w, req)
	})
	return r
}

// runMetrics replays the fetch report in dir into the recorder, once per
// run ID. The fetch command exits before anything scrapes it, so its
// counters reach /metrics this way.
type runMetrics struct {
	dir string
	rec *metrics.Recorder

	mu   sync.Mutex
	seen string
}

func (m *runMetrics) sync() {
	rep, err := report.Read(report.Path(m.dir, "fetch"))
	if err != nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if rep.RunID == "" || rep.RunID == m.seen {
		return
	}
	m.seen = rep.RunID

	m.rec.ResetMonths()
	for _, mr := range rep.Months {
		var ferr error
		if mr.Error != "" {
			ferr = eris.New(mr.Error)
		}
		m.rec.ObserveFetch(mr.Month, time.Duration(mr.Seconds*float64(time.Second)), ferr)
		if ferr == nil {
			m.rec.ObserveBatch(mr.Month, mr.Stats.Normalized, mr.Stats.Skipped)
		}
	}
	zap.L().Debug("fetch metrics loaded", zap.String("run_id", rep.RunID), zap.Int("months", len(rep.Months)))
}

// listLayers returns the GeoJSON layers in dir sorted by name and records
// their feature counts.
func listLayers(dir string, rec *metrics.Recorder) ([]layerInfo, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*"+export.GeoJSONExt))
	if err != nil {
		return nil, eris.Wrap(err, "serve: glob layers")
	}
	sort.Strings(paths)

	out := make([]layerInfo, 0, len(paths))
	for _, p := range paths {
		name := strings.TrimSuffix(filepath.Base(p), export.GeoJSONExt)
		if export.ValidateLayerName(name) != nil {
			continue
		}
		fi, err := os.Stat(p)
		if err != nil {
			return nil, eris.Wrapf(err, "serve: stat %s", p)
		}
		n, err := countFeatures(p)
		if err != nil {
			zap.L().Warn("unreadable layer", zap.String("layer", name), zap.Error(err))
			continue
		}
		rec.ObserveLayer(name, n)
		out = append(out, layerInfo{Name: name, Features: n, Bytes: fi.Size()})
	}
	return out, nil
}

func countFeatures(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	var fc struct {
		Features []json.RawMessage `json:"features"`
	}
	if err := json.NewDecoder(f).Decode(&fc); err != nil {
		return 0, eris.Wrap(err, "decode feature collection")
	}
	return len(fc.Features), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveDir, "dir", "", "directory of exported layers (default export.dir)")
	rootCmd.AddCommand(serveCmd)
}
