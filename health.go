package eventstream

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewHealthHandler serves the registry aggregate:
//
//	GET /health          {"state","label","connectedCount","totalCount","hasErrors","firstError"}
//	GET /streams         the same summary with every stream row
//	GET /streams/{id}    one row, 404 if unknown
//
// /health answers 200 when every stream is connected or none are open yet,
// and 503 otherwise, so it can back a load balancer or a UI badge.
func NewHealthHandler(reg *Registry) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		s := reg.Summary()
		s.Streams = nil
		status := http.StatusOK
		if s.Total > 0 && s.State != StateConnected {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, s)
	})

	r.Get("/streams", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, reg.Summary())
	})

	r.Get("/streams/{id}", func(w http.ResponseWriter, req *http.Request) {
		e, ok := reg.Get(chi.URLParam(req, "id"))
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "stream not found"})
			return
		}
		writeJSON(w, http.StatusOK, EntryView{
			ID:          e.ID,
			Name:        e.Name,
			Connected:   e.Connected,
			Error:       ErrorMessage(e.Err),
			LastUpdated: e.LastUpdated,
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
