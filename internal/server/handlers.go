package server

import (
	"encoding/json"
	"net/http"
)

const subscribed = "subscribed"

type healthResponse struct {
	Status  string            `json:"status"`
	Streams map[string]string `json:"streams"`
}

// handleHealth answers 200 while every stream is subscribed and 503
// otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Streams: map[string]string{}}
	if s.Status != nil {
		resp.Streams = s.Status()
	}
	code := http.StatusOK
	for _, state := range resp.Streams {
		if state != subscribed {
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
			break
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(resp)
}
