package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/starford/othala/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
	Code  string `json:"code,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps a coded error onto an HTTP status and JSON body. Uncoded
// errors are logged and reported as internal.
func writeError(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)
	if code == apperr.CodeInternal {
		slog.Error("request failed", slog.String("error", err.Error()))
	}
	writeJSON(w, statusOf(code), errResponse{Error: err.Error(), Code: string(code)})
}

func statusOf(code apperr.Code) int {
	switch code {
	case apperr.CodeNotFound, apperr.CodePaneNotFound:
		return http.StatusNotFound
	case apperr.CodeAlreadyExists, apperr.CodeConflict, apperr.CodeBusy, apperr.CodeSaveBlocked,
		apperr.CodeDirectionLocked, apperr.CodeMaxPanesReached, apperr.CodeMinSizeBlocked,
		apperr.CodeSinglePaneBlocked:
		return http.StatusConflict
	case apperr.CodeInvalidParentNodeID, apperr.CodeInvalidDisplayName,
		apperr.CodeInvalidNodeID, apperr.CodeInvalidDocumentID:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
