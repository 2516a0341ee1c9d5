package snapshot

import (
	"encoding/json"
	"net/http"
)

// LatestHandler serves the most recently saved aggregate, answering 404
// until the first snapshot exists.
func (s *Store) LatestHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := s.Latest(r.Context())
		switch {
		case err != nil:
			s.logger.Error("loading latest snapshot failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "loading snapshot failed"})
		case stats == nil:
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no snapshot saved yet"})
		default:
			writeJSON(w, http.StatusOK, stats)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
