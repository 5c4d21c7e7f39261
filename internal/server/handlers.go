package server

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/usergate-io/usergate/internal/service"
)

// defaultUserID is served when the request carries no id parameter.
const defaultUserID = 1

// Handlers exposes the HTTP handlers for the lookup API.
type Handlers struct {
	logger *slog.Logger
	lookup *service.Lookup
}

// NewHandlers constructs a Handlers instance.
func NewHandlers(logger *slog.Logger, lookup *service.Lookup) *Handlers {
	return &Handlers{
		logger: logger,
		lookup: lookup,
	}
}

// handleUser serves GET /user?id=N. Invalid identifiers are rejected before
// the lookup layer is involved; lookup failures map to an opaque 500 with
// the detail kept server-side.
func (h *Handlers) handleUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	id, err := parseUserID(r.URL.Query().Get("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be a positive integer")
		return
	}

	record, err := h.lookup.UserByID(r.Context(), id)
	if err != nil {
		h.logger.Error("user lookup failed", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to look up user")
		return
	}

	respondJSON(w, http.StatusOK, record)
}

func parseUserID(raw string) (int, error) {
	if raw == "" {
		return defaultUserID, nil
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, strconv.ErrRange
	}
	return id, nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
