package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const healthCheckTimeout = 2 * time.Second

// HealthHandler reports 503 when the configured backing store cannot be reached.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.services.HealthCheck != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()
			if err := s.services.HealthCheck(ctx); err != nil {
				log.Warn().Err(err).Msg("health check failed")
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
