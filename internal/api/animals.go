package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/banshee-data/barn.report/internal/db"
	"github.com/banshee-data/barn.report/internal/httputil"
	"github.com/banshee-data/barn.report/internal/livestock"
	"github.com/banshee-data/barn.report/internal/units"
)

const (
	defaultRecordLimit = 100
	maxRecordLimit     = 10000
)

// RecordAPI is one stored record as served over HTTP. Displacement is in the
// requested units.
type RecordAPI struct {
	RecordID               string          `json:"record_id"`
	Timestamp              float64         `json:"timestamp"`
	TimestampFormatted     string          `json:"timestamp_formatted"`
	PosX                   float64         `json:"pos_x"`
	PosY                   float64         `json:"pos_y"`
	Angle                  float64         `json:"angle"`
	State                  livestock.State `json:"state"`
	CameraIdx              int             `json:"camera_idx"`
	DisplacementPx         float64         `json:"displacement_px"`
	Displacement           float64         `json:"displacement"`
	CumulativeStateSeconds float64         `json:"cumulative_state_seconds"`
}

// MovementAPI is livestock.MovementStats converted to the requested units.
type MovementAPI struct {
	Records       int                     `json:"records"`
	StateCounts   map[livestock.State]int `json:"state_counts"`
	Total         float64                 `json:"total"`
	Mean          float64                 `json:"mean"`
	StdDev        float64                 `json:"stddev"`
	Median        float64                 `json:"median"`
	P95           float64                 `json:"p95"`
	Max           float64                 `json:"max"`
	FirstSeenUnix float64                 `json:"first_seen_unix"`
	LastSeenUnix  float64                 `json:"last_seen_unix"`
}

// RecordsResponse is the body of GET /api/animals/{id}/records.
type RecordsResponse struct {
	AnimalID livestock.AnimalID `json:"animal_id"`
	Units    string             `json:"units"`
	Records  []RecordAPI        `json:"records"`
	Movement MovementAPI        `json:"movement"`
}

func toRecordAPI(rec *livestock.StoredRecord, unit string) RecordAPI {
	return RecordAPI{
		RecordID:               rec.RecordID,
		Timestamp:              rec.Timestamp,
		TimestampFormatted:     rec.TimestampFormatted,
		PosX:                   units.Round(rec.Position.X, 2),
		PosY:                   units.Round(rec.Position.Y, 2),
		Angle:                  units.Round(rec.Angle, 1),
		State:                  rec.State,
		CameraIdx:              rec.CameraIdx,
		DisplacementPx:         units.Round(rec.DisplacementPx, 2),
		Displacement:           units.Round(units.ConvertLength(rec.DisplacementCm, unit), 2),
		CumulativeStateSeconds: units.Round(rec.CumulativeStateSeconds, 2),
	}
}

func toMovementAPI(ms livestock.MovementStats, unit string) MovementAPI {
	conv := func(cm float64) float64 {
		return units.Round(units.ConvertLength(cm, unit), 2)
	}
	return MovementAPI{
		Records:       ms.Records,
		StateCounts:   ms.StateCounts,
		Total:         conv(ms.TotalCm),
		Mean:          conv(ms.MeanCm),
		StdDev:        conv(ms.StdDevCm),
		Median:        conv(ms.MedianCm),
		P95:           conv(ms.P95Cm),
		Max:           conv(ms.MaxCm),
		FirstSeenUnix: ms.FirstSeenUnix,
		LastSeenUnix:  ms.LastSeenUnix,
	}
}

func (s *Server) listAnimals(w http.ResponseWriter, r *http.Request) {
	animals, err := s.history.Animals(r.Context())
	if err != nil {
		log.Printf("failed to list animals: %v", err)
		httputil.InternalServerError(w, "failed to list animals")
		return
	}
	if animals == nil {
		animals = []db.AnimalSummary{}
	}
	httputil.WriteJSONOK(w, animals)
}

func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	id := livestock.AnimalID(r.PathValue("id"))
	if id == "" {
		httputil.BadRequest(w, "missing animal id")
		return
	}

	limit := defaultRecordLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > maxRecordLimit {
			httputil.BadRequest(w, fmt.Sprintf("'limit' must be between 1 and %d", maxRecordLimit))
			return
		}
		limit = parsed
	}

	unit := s.units
	if u := r.URL.Query().Get("units"); u != "" {
		if !units.IsValid(u) {
			httputil.BadRequest(w, fmt.Sprintf("Invalid 'units' parameter. Must be one of: %s", units.GetValidUnitsString()))
			return
		}
		unit = u
	}

	records, err := s.history.Records(r.Context(), id, limit)
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, fmt.Sprintf("no records for animal %s", id))
		return
	}
	if err != nil {
		log.Printf("failed to read records for animal %s: %v", id, err)
		httputil.InternalServerError(w, "failed to read records")
		return
	}

	resp := RecordsResponse{
		AnimalID: id,
		Units:    unit,
		Records:  make([]RecordAPI, 0, len(records)),
		Movement: toMovementAPI(livestock.SummariseMovement(records), unit),
	}
	for _, rec := range records {
		resp.Records = append(resp.Records, toRecordAPI(rec, unit))
	}
	httputil.WriteJSONOK(w, resp)
}
