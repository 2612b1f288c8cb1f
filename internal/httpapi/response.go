// Package httpapi is the admin REST/SSE surface (spec.md 6): graph
// introspection, config hot-reload, computing-state snapshots, thermal
// readouts and per-node audio streaming, grounded on the chi router and
// envelope/error conventions of the flowpbx admin API.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/sctg-development/rust-photoacoustic-sub000/internal/paerrors"
)

// errorBody is the structured error contract from spec.md 6 ("the REST
// admin surface reports errors with a structured body {kind, message,
// details}").
type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data) //nolint:errcheck
}

// writeError picks a status code from the error's paerrors.Kind when it
// implements HasKind, and falls back to 500 for anything else (a bug
// rather than a documented failure mode).
func writeError(w http.ResponseWriter, logger *log.Logger, err error) {
	var hk paerrors.HasKind
	kind := paerrors.Kind("internal")
	status := http.StatusInternalServerError
	if errors.As(err, &hk) {
		kind = hk.Kind()
		status = paerrors.HTTPStatus(kind)
	}
	if status >= 500 {
		logger.Error("request failed", "kind", kind, "err", err)
	}
	writeJSON(w, status, errorBody{Kind: string(kind), Message: err.Error()})
}

func writeErrorStatus(w http.ResponseWriter, status int, kind paerrors.Kind, message string) {
	writeJSON(w, status, errorBody{Kind: string(kind), Message: message})
}
