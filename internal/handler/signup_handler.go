// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/campaignhub/internal/middleware"
	"github.com/hitoshi/campaignhub/internal/model"
	"github.com/hitoshi/campaignhub/internal/signup"
)

// maxSignupBodyBytes は会員登録リクエストボディの上限サイズ。
const maxSignupBodyBytes = 64 << 10

// SignupServiceInterface は会員登録ハンドラーが必要とするサービスインターフェース。
type SignupServiceInterface interface {
	Signup(ctx context.Context, req *signup.Request) (*model.SignupResult, error)
}

// SignupHandler は会員登録のHTTPハンドラー。
type SignupHandler struct {
	service SignupServiceInterface
	logger  *slog.Logger
}

// NewSignupHandler はSignupHandlerを生成する。
func NewSignupHandler(service SignupServiceInterface, logger *slog.Logger) *SignupHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SignupHandler{
		service: service,
		logger:  logger,
	}
}

// signupResponse は会員登録成功時のAPIレスポンス。
type signupResponse struct {
	RedirectTo string `json:"redirectTo"`
	Role       string `json:"role"`
}

// Signup は会員登録を処理する。
// POST /api/auth/signup
func (h *SignupHandler) Signup(w http.ResponseWriter, r *http.Request) {
	// 1. リクエストボディのデコード
	var req signup.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSignupBodyBytes))
	if err := dec.Decode(&req); err != nil {
		h.logger.Warn("invalid signup request body", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, model.NewValidationError(nil))
		return
	}

	// 2. 会員登録
	result, err := h.service.Signup(r.Context(), &req)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			middleware.WriteErrorResponse(w, apiErr)
			return
		}
		h.logger.Error("signup failed with unexpected error", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// 3. 201 Created
	writeJSON(w, http.StatusCreated, signupResponse{
		RedirectTo: result.RedirectTo,
		Role:       string(result.Role),
	})
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}
