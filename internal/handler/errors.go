package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/ghdash/internal/github"
	"github.com/hitoshi/ghdash/internal/middleware"
	"github.com/hitoshi/ghdash/internal/model"
	"github.com/hitoshi/ghdash/internal/search"
)

// invalidInputError はリクエストパラメータの検証エラー。
type invalidInputError struct {
	reason string
}

func (e *invalidInputError) Error() string {
	return "invalid input: " + e.reason
}

func newInvalidInput(reason string) error {
	return &invalidInputError{reason: reason}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// handleServiceError は下位層から返されたエラーをHTTPステータスと統一エラーフォーマットに変換する。
// 予期しないエラーは詳細をログのみに記録し、500を返す。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, apiErr := classifyError(err)
	if status == http.StatusInternalServerError {
		slog.Error("internal server error",
			slog.String("error", err.Error()),
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		)
	} else if status >= http.StatusBadGateway || status == http.StatusUnauthorized || status == http.StatusForbidden {
		slog.Warn("upstream request failed",
			slog.String("error", err.Error()),
			slog.Int("status", status),
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		)
	}
	middleware.WriteErrorResponse(w, status, apiErr)
}

// classifyError はエラーをHTTPステータスとAPIErrorに対応付ける。
func classifyError(err error) (int, *model.APIError) {
	var inputErr *invalidInputError
	switch {
	case errors.As(err, &inputErr):
		return http.StatusBadRequest, model.NewInvalidInputError(inputErr.reason)
	case errors.Is(err, search.ErrInvalidQuery):
		return http.StatusBadRequest, model.NewInvalidQueryError()
	case errors.Is(err, search.ErrNoResults):
		return http.StatusNotFound, model.NewNoResultsError()
	case errors.Is(err, github.ErrNotFound):
		return http.StatusNotFound, model.NewResourceNotFoundError()
	case errors.Is(err, github.ErrUpstreamRejected):
		return upstreamStatus(err, http.StatusForbidden), model.NewUpstreamRejectedError()
	case errors.Is(err, github.ErrUpstreamUnavailable):
		return upstreamStatus(err, http.StatusBadGateway), model.NewUpstreamUnavailableError()
	default:
		return http.StatusInternalServerError, model.NewInternalError()
	}
}

func upstreamStatus(err error, fallback int) int {
	if status := github.StatusOf(err); status != 0 {
		return status
	}
	return fallback
}
