// Package handler содержит HTTP-обработчики API сервиса контроля уровней продавцов.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/seller-tier-enforcement/internal/enforcement"
	"github.com/mmeshcher/seller-tier-enforcement/internal/fees"
	"github.com/mmeshcher/seller-tier-enforcement/internal/middleware"
	"github.com/mmeshcher/seller-tier-enforcement/internal/model"
	"github.com/mmeshcher/seller-tier-enforcement/internal/repository"
	"github.com/mmeshcher/seller-tier-enforcement/internal/service"
	"github.com/mmeshcher/seller-tier-enforcement/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RunScan(ctx context.Context) (*enforcement.ScanReport, error)
	Evaluate(ctx context.Context, sellerUID string) (*enforcement.Evaluation, error)
	GetSellerStats(ctx context.Context, sellerUID string) (*model.SellerStats, error)
	GetListingPolicy(ctx context.Context, sellerUID string) (fees.Policy, error)
}

// Handler реализует HTTP-обработчики API сервиса.
type Handler struct {
	service     Service
	logger      *zap.Logger
	triggerAuth *middleware.TriggerAuth
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.TriggerAuth) *Handler {
	return &Handler{
		service:     s,
		logger:      logger,
		triggerAuth: auth,
	}
}

type scanResponse struct {
	*enforcement.ScanReport
	Error string `json:"error,omitempty"`
}

// RunScan запускает внеплановый прогон сканера просрочек.
// Прогон с ошибками возвращает 500 вместе с отчётом, чтобы планировщик повторил его.
func (h *Handler) RunScan(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.GetCallerFromContext(r.Context())

	report, err := h.service.RunScan(r.Context())
	if err != nil {
		h.logger.Error("scan error", zap.Error(err), zap.String("caller", caller))
		if errors.Is(err, enforcement.ErrScanIncomplete) && report != nil {
			writeJSON(w, http.StatusInternalServerError, scanResponse{ScanReport: report, Error: err.Error()})
			return
		}
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, scanResponse{ScanReport: report})
}

type evaluationResponse struct {
	SellerUID    string            `json:"sellerUid"`
	PreviousTier model.Tier        `json:"previousTier,omitempty"`
	TierChanged  bool              `json:"tierChanged"`
	Stats        model.SellerStats `json:"stats"`
}

// EvaluateSeller пересчитывает уровень продавца, например после доставки, спора или чарджбэка.
func (h *Handler) EvaluateSeller(w http.ResponseWriter, r *http.Request) {
	uid, ok := sellerUIDParam(w, r)
	if !ok {
		return
	}

	res, err := h.service.Evaluate(r.Context(), uid)
	if err != nil {
		if errors.Is(err, enforcement.ErrEmptySellerUID) {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		h.logger.Error("evaluate seller error", zap.Error(err), zap.String("seller", uid))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if res == nil {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, evaluationResponse{
		SellerUID:    res.SellerUID,
		PreviousTier: res.PreviousTier,
		TierChanged:  res.TierChanged(),
		Stats:        res.Stats,
	})
}

// GetSellerStats возвращает сохранённую статистику продавца.
func (h *Handler) GetSellerStats(w http.ResponseWriter, r *http.Request) {
	uid, ok := sellerUIDParam(w, r)
	if !ok {
		return
	}

	stats, err := h.service.GetSellerStats(r.Context(), uid)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrSellerNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, service.ErrSellerNotEvaluated):
			w.WriteHeader(http.StatusNoContent)
		default:
			h.logger.Error("get seller stats error", zap.Error(err), zap.String("seller", uid))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

type policyResponse struct {
	fees.Policy
	FixedPriceFee     *decimal.Decimal `json:"fixedPriceFee,omitempty"`
	AuctionListingFee *decimal.Decimal `json:"auctionListingFee,omitempty"`
}

// GetListingPolicy возвращает условия листинга продавца. С параметром price
// дополнительно рассчитываются комиссии для этой цены.
func (h *Handler) GetListingPolicy(w http.ResponseWriter, r *http.Request) {
	uid, ok := sellerUIDParam(w, r)
	if !ok {
		return
	}

	var price *decimal.Decimal
	if raw := r.URL.Query().Get("price"); raw != "" {
		p, err := decimal.NewFromString(raw)
		if err != nil || p.IsNegative() {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		price = &p
	}

	policy, err := h.service.GetListingPolicy(r.Context(), uid)
	if err != nil {
		if errors.Is(err, repository.ErrSellerNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get listing policy error", zap.Error(err), zap.String("seller", uid))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := policyResponse{Policy: policy}
	if price != nil {
		fixed, err := policy.FixedPriceFee(*price)
		if err == nil {
			resp.FixedPriceFee = &fixed
		}
		if auction, err := policy.AuctionListingFee(*price); err == nil {
			resp.AuctionListingFee = &auction
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func sellerUIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid := chi.URLParam(r, "uid")
	if !validation.IsValidSellerUID(uid) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return "", false
	}
	return uid, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
