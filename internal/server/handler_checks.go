package server

import (
	"net/http"
	"time"

	"github.com/me/ecswait/internal/sensor"
	"github.com/me/ecswait/pkg/model"
)

// handleCheck runs a single completion check and returns the decision.
// Interval, timeout and soft-fail in the body are ignored. A failed
// listing is reported as 502 with a QUERY_ERROR.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	spec, apiErr := decodeWaitSpec(r)
	if apiErr != nil {
		respondError(w, reqID, http.StatusBadRequest, apiErr)
		return
	}

	filter, apiErr := s.buildFilter(r.Context(), spec, "check_"+reqID, time.Now().UTC(), r.URL.Query().Get("strict") == "true")
	if apiErr != nil {
		respondError(w, reqID, http.StatusBadRequest, apiErr)
		return
	}

	decision := sensor.NewWithFilter(filter, s.lister, s.logger).Check(r.Context())
	if decision.State == model.DecisionFailed {
		respondError(w, reqID, http.StatusBadGateway, &model.APIError{
			Code:    model.ErrQuery,
			Message: decision.Message(),
		})
		return
	}
	respondOK(w, reqID, decision)
}
