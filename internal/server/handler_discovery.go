package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "ecswait API",
		Version:     "v1",
		Description: "Wait for ECS clusters to drain: one-shot checks and persisted waits",
		Endpoints: []endpointInfo{
			{"/api/v1/checks", []string{"POST"}, "Run one completion check. Accepts ?strict=true to validate filter keys"},
			{"/api/v1/waits", []string{"GET", "POST"}, "Wait management. GET accepts state, cluster, limit and offset"},
			{"/api/v1/waits/{id}", []string{"GET"}, "Single Wait detail"},
			{"/api/v1/waits/{id}/cancel", []string{"PUT"}, "Cancel a WAITING Wait"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
		},
	})
}
