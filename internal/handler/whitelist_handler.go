package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/gatekeeper/internal/metrics"
	"github.com/hitoshi/gatekeeper/internal/middleware"
	"github.com/hitoshi/gatekeeper/internal/model"
	"github.com/hitoshi/gatekeeper/internal/whitelist"
)

// maxRegisterBodyBytes はホワイトリスト登録リクエストボディの上限。
const maxRegisterBodyBytes = 4 << 10

// WhitelistServiceInterface はホワイトリストハンドラーが必要とするサービスインターフェース。
type WhitelistServiceInterface interface {
	Register(ctx context.Context, email string) (*model.WhitelistEntry, error)
}

// WhitelistHandler はホワイトリスト自己登録のHTTPハンドラー。
type WhitelistHandler struct {
	service WhitelistServiceInterface
	metrics metrics.MetricsCollector
}

// NewWhitelistHandler はWhitelistHandlerを生成する。
func NewWhitelistHandler(service WhitelistServiceInterface, collector metrics.MetricsCollector) *WhitelistHandler {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &WhitelistHandler{service: service, metrics: collector}
}

type registerRequest struct {
	Email string `json:"email"`
}

// Register はメールアドレスをホワイトリストに登録する。
// 認証は不要だが、ルーター側で登録専用のレート制限を掛ける。
// POST /api/whitelist
func (h *WhitelistHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRegisterBodyBytes)).Decode(&req); err != nil {
		h.metrics.RecordRegistration(metrics.RegistrationInvalid)
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidEmailError())
		return
	}

	entry, err := h.service.Register(r.Context(), req.Email)
	if err != nil {
		switch {
		case errors.Is(err, whitelist.ErrInvalidEmail):
			h.metrics.RecordRegistration(metrics.RegistrationInvalid)
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidEmailError())
		case errors.Is(err, whitelist.ErrAlreadyWhitelisted):
			h.metrics.RecordRegistration(metrics.RegistrationDuplicate)
			middleware.WriteErrorResponse(w, http.StatusConflict, model.NewAlreadyWhitelistedError())
		default:
			h.metrics.RecordRegistration(metrics.RegistrationError)
			slog.Error("whitelist registration failed", slog.String("error", err.Error()))
			middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewWhitelistFailedError())
		}
		return
	}

	h.metrics.RecordRegistration(metrics.RegistrationCreated)
	slog.Info("email added to whitelist", slog.String("email", entry.Email))
	writeJSON(w, http.StatusCreated, successResponse{
		Success: true,
		Message: "Email added to whitelist",
	})
}
