package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

type ErrorResponse struct {
	Message     string `json:"message"`
	Description string `json:"description,omitempty"`
}

func SendJSONErr(ctx context.Context, w http.ResponseWriter, code int, originErr error, msgToSend string) {
	if originErr == nil {
		originErr = errors.New(msgToSend)
	}

	if code >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "api error", "error", originErr.Error())
	} else {
		slog.WarnContext(ctx, "api error", "error", originErr.Error())
	}

	SendJSON(ctx, w, code, ErrorResponse{Message: msgToSend, Description: originErr.Error()})
}

func SendJSON(ctx context.Context, w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	err := json.NewEncoder(w).Encode(data)
	if err != nil {
		slog.ErrorContext(ctx, "encode response", "error", err)
	}
}
