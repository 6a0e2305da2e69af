package api

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/banshee-data/barn.report/internal/httputil"
	"github.com/banshee-data/barn.report/internal/livestock"
	"github.com/banshee-data/barn.report/internal/report"
	"github.com/banshee-data/barn.report/internal/version"
)

func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) (livestock.Snapshot, bool) {
	snap, err := s.proc.Snapshot(r.Context())
	if err != nil {
		log.Printf("failed to load accumulator snapshot: %v", err)
		httputil.InternalServerError(w, "failed to load accumulated time")
		return nil, false
	}
	return snap, true
}

func (s *Server) showReport(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, livestock.BuildReport(snap))
}

func (s *Server) showLegacyReport(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	out := make(map[livestock.AnimalID]map[string]string, len(snap))
	for id, states := range livestock.BuildReport(snap) {
		row := make(map[string]string, len(states))
		for state, formatted := range states {
			row[legacyStateNames[state]] = formatted
		}
		out[id] = row
	}
	httputil.WriteJSONOK(w, out)
}

func (s *Server) downloadReportXLSX(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	now := s.clock.Now().UTC()

	// Render into memory first so a failure can still be reported as JSON.
	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, snap, now); err != nil {
		log.Printf("failed to render xlsx report: %v", err)
		httputil.InternalServerError(w, "failed to render report")
		return
	}
	filename := fmt.Sprintf("barn_report_%s.xlsx", now.Format("20060102_150405"))
	httputil.SetAttachment(w, filename, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Printf("failed to write xlsx report: %v", err)
	}
}

func (s *Server) showReportChart(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	subtitle := "Generated " + s.clock.Now().UTC().Format(time.RFC3339)
	if err := report.RenderChart(&buf, snap, subtitle); err != nil {
		log.Printf("failed to render chart: %v", err)
		httputil.InternalServerError(w, "failed to render chart")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, s.cfg.Effective())
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, version.Current())
}
