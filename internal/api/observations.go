package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/banshee-data/barn.report/internal/httputil"
	"github.com/banshee-data/barn.report/internal/livestock"
)

// legacyStateNames are the state names the first deployment reported.
var legacyStateNames = map[livestock.State]string{
	livestock.Feeding: "comendo",
	livestock.Moving:  "andando",
}

// legacyResult is the response shape of POST /enviar_animal: a flat object
// whose id is echoed exactly as the agent sent it.
type legacyResult struct {
	ID             json.RawMessage `json:"id"`
	State          string          `json:"state"`
	DisplacementPx float64         `json:"displacement_px"`
	DisplacementCm float64         `json:"displacement_cm"`
	CameraIdx      int             `json:"camera_idx"`
	TotalSeconds   float64         `json:"tempo_total_estado_segundos"`
}

func (s *Server) submitObservation(w http.ResponseWriter, r *http.Request) {
	res, _, ok := s.process(w, r)
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, res)
}

func (s *Server) submitLegacyObservation(w http.ResponseWriter, r *http.Request) {
	res, body, ok := s.process(w, r)
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, legacyResult{
		ID:             rawID(body, res.ID),
		State:          legacyStateNames[res.State],
		DisplacementPx: res.DisplacementPx,
		DisplacementCm: res.DisplacementCm,
		CameraIdx:      res.CameraIdx,
		TotalSeconds:   res.CumulativeStateSeconds,
	})
}

// rawID returns the id field of body untouched, so a numeric id stays a
// number. It falls back to the decoded id as a string.
func rawID(body []byte, id livestock.AnimalID) json.RawMessage {
	var p struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(body, &p); err == nil && len(p.ID) > 0 {
		return p.ID
	}
	b, _ := json.Marshal(string(id))
	return b
}

// process decodes and submits one observation and returns the raw body
// alongside the result. On failure it has already written the error response.
func (s *Server) process(w http.ResponseWriter, r *http.Request) (livestock.Result, []byte, bool) {
	body, err := httputil.ReadBody(w, r, 0)
	if err != nil {
		if errors.Is(err, httputil.ErrBodyTooLarge) {
			httputil.WriteJSONError(w, http.StatusRequestEntityTooLarge, err.Error())
			return livestock.Result{}, nil, false
		}
		httputil.BadRequest(w, "failed to read request body")
		return livestock.Result{}, nil, false
	}

	obs, err := livestock.DecodeObservation(body)
	if err != nil {
		writeValidationError(w, err)
		return livestock.Result{}, nil, false
	}

	res, err := s.proc.Submit(r.Context(), obs)
	if err != nil {
		var verr *livestock.ValidationError
		if errors.As(err, &verr) {
			writeValidationError(w, err)
			return livestock.Result{}, nil, false
		}
		log.Printf("failed to process observation for animal %s: %v", obs.ID, err)
		httputil.InternalServerError(w, "failed to process observation")
		return livestock.Result{}, nil, false
	}
	return res, body, true
}

func writeValidationError(w http.ResponseWriter, err error) {
	var verr *livestock.ValidationError
	if !errors.As(err, &verr) {
		httputil.BadRequest(w, err.Error())
		return
	}
	details := map[string]interface{}{}
	if len(verr.Missing) > 0 {
		details["missing"] = verr.Missing
	}
	if len(verr.Invalid) > 0 {
		details["invalid"] = verr.Invalid
	}
	httputil.WriteJSONErrorDetails(w, http.StatusBadRequest, verr.Error(), details)
}
