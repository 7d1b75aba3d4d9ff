package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/me/ecswait/pkg/model"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
	Scheduler string `json:"scheduler"`
	Store     string `json:"store"`
	Waiting   int    `json:"waiting"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	resp := healthResponse{
		Status:    "healthy",
		Version:   Version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Scheduler: "not_started",
		Store:     "ok",
	}
	if s.started {
		resp.Scheduler = "running"
	}

	waiting, err := s.store.GetWaitsByState(r.Context(), model.WaitStateWaiting)
	if err != nil {
		s.logger.Error("health store probe", "error", err)
		resp.Status = "degraded"
		resp.Store = "error"
	} else {
		resp.Waiting = len(waiting)
	}
	respondOK(w, reqID, resp)
}
