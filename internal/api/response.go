package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/remontlab/leadbot/internal/models"
)

// writeJSONResponse marshals a response envelope onto the wire. Encoding
// failures fall back to a plain error envelope.
func writeJSONResponse(w http.ResponseWriter, status int, resp models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode API response", "error", err)
		http.Error(w, `{"status":"error","message":"internal encoding error"}`, http.StatusInternalServerError)
	}
}

func writeSuccess(w http.ResponseWriter, result any) {
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

func writeCreated(w http.ResponseWriter, result any) {
	writeJSONResponse(w, http.StatusCreated, models.Success(result))
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSONResponse(w, status, models.Error(message))
}

// decodeJSONBody reads a JSON request body into dst.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
