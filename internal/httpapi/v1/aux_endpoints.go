package v1

import (
    "context"
    "net/http"
    "time"
)

const readyTimeout = 800 * time.Millisecond

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

// readyz reports 503 as soon as one dependency fails its check.
func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
    ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
    defer cancel()
    for _, rc := range s.ready {
        if err := rc.Ready(ctx); err != nil {
            s.log.Warn("readiness check failed", "req_id", reqID(r), "err", err)
            w.WriteHeader(http.StatusServiceUnavailable)
            return
        }
    }
    w.WriteHeader(http.StatusOK)
}
