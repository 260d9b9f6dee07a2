package httpx

import (
	"encoding/json"
	"net/http"
)

// WriteJSON writes v as JSON with no-store caching headers. Token and
// identity responses must never be cached.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	writeJSON(w, code, v)
}

// WriteCachedJSON writes v as JSON with the given Cache-Control value.
func WriteCachedJSON(w http.ResponseWriter, code int, cacheControl string, v any) {
	w.Header().Set("Cache-Control", cacheControl)
	writeJSON(w, code, v)
}

// WriteError writes the {"error","error_description"} failure body.
func WriteError(w http.ResponseWriter, code int, errCode, description string) {
	WriteJSON(w, code, map[string]string{
		"error":             errCode,
		"error_description": description,
	})
}

func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
