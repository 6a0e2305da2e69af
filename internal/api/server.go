// Package api serves the barn HTTP interface: observation intake, the
// accumulated-time report in JSON, XLSX and chart form, and read access to
// per-animal histories.
package api

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/barn.report/internal/config"
	"github.com/banshee-data/barn.report/internal/db"
	"github.com/banshee-data/barn.report/internal/livestock"
	"github.com/banshee-data/barn.report/internal/timeutil"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Processor accepts observations and exposes the accumulator snapshot.
// *pipeline.Pipeline satisfies it.
type Processor interface {
	Submit(ctx context.Context, obs livestock.Observation) (livestock.Result, error)
	Snapshot(ctx context.Context) (livestock.Snapshot, error)
}

// HistoryReader gives read access to stored records. *db.DB satisfies it.
type HistoryReader interface {
	Records(ctx context.Context, id livestock.AnimalID, limit int) ([]*livestock.StoredRecord, error)
	Animals(ctx context.Context) ([]db.AnimalSummary, error)
}

type Server struct {
	proc    Processor
	history HistoryReader
	cfg     *config.BarnConfig
	units   string
	clock   timeutil.Clock
}

// NewServer builds a Server. units is the default length unit for record
// displacements and may be overridden per request.
func NewServer(proc Processor, history HistoryReader, cfg *config.BarnConfig, units string) *Server {
	return &Server{
		proc:    proc,
		history: history,
		cfg:     cfg,
		units:   units,
		clock:   timeutil.RealClock{},
	}
}

// SetClock replaces the clock used to stamp generated reports.
func (s *Server) SetClock(c timeutil.Clock) {
	s.clock = c
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

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/observations", s.submitObservation)
	mux.HandleFunc("GET /api/report", s.showReport)
	mux.HandleFunc("GET /api/report.xlsx", s.downloadReportXLSX)
	mux.HandleFunc("GET /api/report/chart", s.showReportChart)
	mux.HandleFunc("GET /api/animals", s.listAnimals)
	mux.HandleFunc("GET /api/animals/{id}/records", s.listRecords)
	mux.HandleFunc("GET /api/config", s.showConfig)
	mux.HandleFunc("GET /api/version", s.showVersion)

	// Routes used by camera agents and dashboards of the first deployment.
	mux.HandleFunc("POST /enviar_animal", s.submitLegacyObservation)
	mux.HandleFunc("GET /relatorio_tempo_acumulado", s.showLegacyReport)
	return mux
}
