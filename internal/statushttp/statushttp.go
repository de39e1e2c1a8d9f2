/* *****************************************************************************
 * Nehonix XyWatch Process Supervisor
 * (see ../watch/types.go for the full license header)
 ***************************************************************************** */

// Package statushttp is an opt-in, read-only JSON snapshot of every
// watch's state and pid. There is nothing here to route or balance,
// only a state dump. Disabled unless an Options.Addr is supplied.
package statushttp

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/didip/tollbooth/v7"
	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"
	"github.com/tomasen/realip"
	limiter "github.com/ulule/limiter/v3"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/Nehonix-Team/xywatchd/internal/watch"
)

// Options configures the status endpoint.
type Options struct {
	Addr string // "" disables the server.

	// GlobalRequestsPerSecond caps total request rate across all
	// clients, enforced with tollbooth.
	GlobalRequestsPerSecond float64
	// PerClientQuota is an ulule/limiter formatted rate ("20-M" = 20 per
	// minute) applied per real client IP (resolved via realip, so a
	// reverse-proxied deployment is still limited per-downstream-client
	// rather than per-proxy-hop).
	PerClientQuota string
}

type watchStatus struct {
	Name  string `json:"name"`
	State string `json:"state"`
	PID   int    `json:"pid"`
}

// Server serves GET /status and GET /healthz.
type Server struct {
	opts Options
	core *watch.Supervisor
	log  *logrus.Entry
	srv  *http.Server
}

func New(core *watch.Supervisor, opts Options, log *logrus.Entry) *Server {
	if opts.GlobalRequestsPerSecond <= 0 {
		opts.GlobalRequestsPerSecond = 5
	}
	if opts.PerClientQuota == "" {
		opts.PerClientQuota = "60-M"
	}
	return &Server{opts: opts, core: core, log: log}
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if s.opts.Addr == "" {
		return nil
	}

	perClientRate, err := limiter.NewRateFromFormatted(s.opts.PerClientQuota)
	if err != nil {
		return err
	}
	perClientLimiter := limiter.New(memorystore.NewStore(), perClientRate)
	globalLimiter := tollbooth.NewLimiter(s.opts.GlobalRequestsPerSecond, nil)

	mux := http.NewServeMux()
	mux.Handle("/status", s.perClientLimit(perClientLimiter, http.HandlerFunc(s.handleStatus)))
	mux.HandleFunc("/healthz", s.handleHealth)

	handler := tollbooth.LimitHandler(globalLimiter, s.accessLog(mux))

	s.srv = &http.Server{Addr: s.opts.Addr, Handler: handler}

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.log.WithFields(logrus.Fields{
			"client": realip.FromRequest(r),
			"path":   r.URL.Path,
		}).Debug("status http request")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) perClientLimit(lim *limiter.Limiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := realip.FromRequest(r)
		ctx, err := lim.Get(r.Context(), key)
		if err != nil {
			http.Error(w, "rate limiter error", http.StatusInternalServerError)
			return
		}
		if ctx.Reached {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	out := make([]watchStatus, 0)
	for _, rec := range s.core.Records() {
		out = append(out, watchStatus{Name: rec.Spec.Name, State: rec.State().String(), PID: rec.PID()})
	}

	body, err := json.Marshal(out)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeCompressed(w, r, body)
}

// writeCompressed negotiates brotli or gzip against Accept-Encoding,
// preferring brotli when the client accepts both.
func writeCompressed(w http.ResponseWriter, r *http.Request, body []byte) {
	accept := r.Header.Get("Accept-Encoding")
	switch {
	case strings.Contains(accept, "br"):
		w.Header().Set("Content-Encoding", "br")
		bw := brotli.NewWriterLevel(w, brotli.DefaultCompression)
		defer bw.Close()
		_, _ = bw.Write(body)
	case strings.Contains(accept, "gzip"):
		w.Header().Set("Content-Encoding", "gzip")
		gw := gzip.NewWriter(w)
		defer gw.Close()
		_, _ = gw.Write(body)
	default:
		_, _ = w.Write(body)
	}
}
