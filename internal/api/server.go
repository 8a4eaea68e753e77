// Package api serves the incident HTTP API: media uploads, the per
// investigator case store, rendered reports and evidence files.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/justinas/alice"

	"github.com/banshee-data/incident.report/internal/db"
	"github.com/banshee-data/incident.report/internal/engine"
	"github.com/banshee-data/incident.report/internal/events"
	"github.com/banshee-data/incident.report/internal/fsutil"
	"github.com/banshee-data/incident.report/internal/httputil"
	"github.com/banshee-data/incident.report/internal/monitoring"
	"github.com/banshee-data/incident.report/internal/report"
	"github.com/banshee-data/incident.report/internal/timeutil"
)

// ANSI escape codes for request logging
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

// InvestigatorHeader names the owner of the cases a request touches.
const InvestigatorHeader = "X-Investigator"

// DefaultMaxUploadBytes bounds upload bodies when Options leaves it unset.
const DefaultMaxUploadBytes = 200 << 20

// ImageAnalyzer produces the report for one image.
type ImageAnalyzer interface {
	Run(ctx context.Context, data []byte, name string) (*report.CaseReport, error)
}

// VideoAnalyzer produces the report for a video stored at path.
type VideoAnalyzer interface {
	Run(ctx context.Context, path, handledBy string) (*report.VideoReport, error)
}

// Options wire a Server. Images, Videos and Store are required.
type Options struct {
	Images         ImageAnalyzer
	Videos         VideoAnalyzer
	Store          *db.DB
	Events         events.Publisher
	FS             fsutil.FileSystem
	Clock          timeutil.Clock
	StorageDir     string // evidence root shared with the engine and video pipeline
	MaxUploadBytes int64
	NewUploadID    func() string
}

type Server struct {
	images     ImageAnalyzer
	videos     VideoAnalyzer
	store      *db.DB
	events     events.Publisher
	fs         fsutil.FileSystem
	clock      timeutil.Clock
	storageDir string
	maxUpload  int64
	uploadID   func() string
}

func NewServer(opts Options) *Server {
	s := &Server{
		images:     opts.Images,
		videos:     opts.Videos,
		store:      opts.Store,
		events:     opts.Events,
		fs:         opts.FS,
		clock:      opts.Clock,
		storageDir: opts.StorageDir,
		maxUpload:  opts.MaxUploadBytes,
		uploadID:   opts.NewUploadID,
	}
	if s.events == nil {
		s.events = events.NoopPublisher{}
	}
	if s.fs == nil {
		s.fs = fsutil.OSFileSystem{}
	}
	if s.clock == nil {
		s.clock = timeutil.RealClock{}
	}
	if s.storageDir == "" {
		s.storageDir = "outputs"
	}
	if s.maxUpload <= 0 {
		s.maxUpload = DefaultMaxUploadBytes
	}
	if s.uploadID == nil {
		s.uploadID = engine.NewCaseID
	}
	return s
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status and duration, and counts the
// request by route pattern.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[API] [%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		monitoring.HTTPRequests.WithLabelValues(route, strconv.Itoa(lrw.statusCode)).Inc()
	})
}

// RecoverMiddleware turns a handler panic into a 500.
func RecoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				monitoring.Warnf("[API] panic serving %s %s: %v", r.Method, r.URL.Path, v)
				w.Header().Set("Connection", "close")
				httputil.InternalServerError(w, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// ServeMux registers the API routes.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/cases/image", s.uploadImage)
	mux.HandleFunc("POST /api/cases/video", s.uploadVideo)
	mux.HandleFunc("GET /api/cases", s.listCases)
	mux.HandleFunc("GET /api/cases/{id}", s.getCase)
	mux.HandleFunc("DELETE /api/cases/{id}", s.deleteCase)
	mux.HandleFunc("GET /api/cases/{id}/report.pdf", s.reportPDF)
	mux.HandleFunc("GET /api/cases/{id}/timeline", s.timelineChart)
	mux.HandleFunc("GET /api/cases/{id}/severity.png", s.severityChart)
	mux.HandleFunc("GET /api/cases/{id}/custody", s.getCustody)
	mux.HandleFunc("GET /api/cases/{id}/custody/verify", s.verifyCustody)
	mux.HandleFunc("GET /api/cases/{id}/frames/{file}", s.serveFrame)
	mux.HandleFunc("GET /api/evidence/{file}", s.serveEvidence)
	mux.HandleFunc("GET /health", s.health)
	mux.Handle("GET /metrics", monitoring.MetricsHandler())
	return mux
}

// Handler wraps mux in the standard middleware chain.
func (s *Server) Handler(mux *http.ServeMux) http.Handler {
	return alice.New(LoggingMiddleware, RecoverMiddleware).Then(mux)
}

// owner resolves the investigator a request acts for.
func owner(r *http.Request) string {
	if o := r.Header.Get(InvestigatorHeader); o != "" {
		return o
	}
	return db.DefaultOwner
}
