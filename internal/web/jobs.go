package web

import (
	"net/http"

	"github.com/JonMunkholm/lending/internal/core"
	"github.com/JonMunkholm/lending/internal/logging"
)

// limitJobs holds a limiter slot for the duration of the request and tags
// the request context with a job id and operator. A saturated limiter
// answers 503 once the wait time expires.
func (s *Server) limitJobs(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.limiter.Acquire(r.Context()); err != nil {
			if r.Context().Err() != nil {
				// Client went away while waiting; nobody reads the response.
				return
			}
			w.Header().Set("Retry-After", "30")
			s.respondErrorStatus(w, r, err, http.StatusServiceUnavailable)
			return
		}
		defer s.limiter.Release()

		ctx, jobID := core.NewJobContext(r.Context())
		ctx = WithRequestMetadata(ctx, r)
		w.Header().Set("X-Job-ID", jobID)

		logging.FromContext(ctx).Info("job started",
			"job_id", jobID,
			"path", r.URL.Path,
			"operator", core.OperatorFromContext(ctx),
		)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// handleJobStatus reports limiter occupancy.
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.limiter.Status())
}
