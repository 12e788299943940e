package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"mineShaftAPI/internal/avatar"
	"mineShaftAPI/internal/progression"
	"mineShaftAPI/internal/storage"
	"mineShaftAPI/internal/task"
)

// operationResponse is the body of every state-changing action.
type operationResponse struct {
	Success bool                 `json:"success"`
	Task    *task.Task           `json:"task,omitempty"`
	Outcome *progression.Outcome `json:"outcome,omitempty"`
	Avatar  *avatar.Avatar       `json:"avatar,omitempty"`
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithStoreError maps a service error onto a status code.
func respondWithStoreError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, task.ErrInvalidTask), errors.Is(err, avatar.ErrInvalidRequest):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "Task not found")
	case errors.Is(err, storage.ErrUnavailable):
		respondWithError(w, http.StatusServiceUnavailable, "Storage unavailable")
	default:
		respondWithError(w, http.StatusInternalServerError, fallback)
	}
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
