package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"reviewguard-be/internal/commission"
	"reviewguard-be/internal/logger"
	"reviewguard-be/internal/metrics"
	"reviewguard-be/internal/order"
	"reviewguard-be/internal/referral"
	"reviewguard-be/internal/user"
	"reviewguard-be/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler adapts HTTP to the engine services. Every decision lives in the
// services; handlers only parse, dispatch and translate errors to reasons.
type Handler struct {
	OrderSvc      order.Service
	CommissionSvc commission.Service
	ReferralSvc   referral.Service
	UserSvc       user.Service
}

func NewHandler(orderSvc order.Service, commissionSvc commission.Service, referralSvc referral.Service, userSvc user.Service) *Handler {
	return &Handler{
		OrderSvc:      orderSvc,
		CommissionSvc: commissionSvc,
		ReferralSvc:   referralSvc,
		UserSvc:       userSvc,
	}
}

func (h *Handler) Routes(requireAdmin func(http.Handler) http.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /login", h.Login)
	mux.HandleFunc("POST /checkout", h.Checkout)

	mux.Handle("GET /orders", requireAdmin(http.HandlerFunc(h.ListOrders)))
	mux.Handle("GET /orders/{id}", http.HandlerFunc(h.GetOrder))
	mux.Handle("GET /orders/{id}/progress", http.HandlerFunc(h.Progress))

	mux.Handle("POST /orders/{id}/stage", requireAdmin(http.HandlerFunc(h.StageChange)))
	mux.Handle("POST /orders/{id}/status", requireAdmin(http.HandlerFunc(h.OverrideStatus)))
	mux.Handle("POST /orders/{id}/refresh", requireAdmin(http.HandlerFunc(h.Refresh)))
	mux.Handle("POST /orders/{id}/capture", requireAdmin(http.HandlerFunc(h.Capture)))
	mux.Handle("POST /orders/{id}/commission", requireAdmin(http.HandlerFunc(h.PayCommission)))

	mux.Handle("POST /orders/{id}/referral-code", requireAdmin(http.HandlerFunc(h.MintReferralCode)))
	mux.Handle("GET /orders/{id}/referral-code", http.HandlerFunc(h.GetReferralCode))

	mux.Handle("GET /reps/{id}/orders", requireAdmin(http.HandlerFunc(h.ListRepOrders)))
	mux.Handle("GET /reps/{id}/commissions", requireAdmin(http.HandlerFunc(h.CommissionSummary)))
	mux.Handle("POST /reps/{id}/commissions/pay-all", requireAdmin(http.HandlerFunc(h.PayAllCommissions)))

	return mux
}

// --- Request / response shapes ---

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

type checkoutRequest struct {
	BasePriceCents      int      `json:"base_price_cents"`
	ReferralCode        *string  `json:"referral_code,omitempty"`
	PaymentMethodOnFile bool     `json:"payment_method_on_file"`
	PlaceRef            *string  `json:"place_ref,omitempty"`
	StartBad1           *int     `json:"start_bad_1,omitempty"`
	StartBad2           *int     `json:"start_bad_2,omitempty"`
	StartBad3           *int     `json:"start_bad_3,omitempty"`
	StartTotalReviews   *int     `json:"start_total_reviews,omitempty"`
	StartAverageRating  *float64 `json:"start_average_rating,omitempty"`
}

type orderResponse struct {
	ID               uuid.UUID              `json:"id"`
	Stage            order.Stage            `json:"stage"`
	Status           order.Status           `json:"status"`
	PaymentStatus    order.PaymentStatus    `json:"payment_status"`
	CommissionStatus order.CommissionStatus `json:"commission_status"`
	BasePriceCents   int                    `json:"base_price_cents"`
	DiscountCents    int                    `json:"discount_cents"`
	TotalCents       int                    `json:"total_cents"`
	ReferralCode     *string                `json:"referral_code,omitempty"`
}

type progressResponse struct {
	StartSum    *int     `json:"start_sum"`
	LiveSum     *int     `json:"live_sum"`
	Removed     *int     `json:"removed"`
	ProgressPct *float64 `json:"progress_pct"`
	CanCapture  bool     `json:"can_capture"`
}

type stageRequest struct {
	Stage order.Stage `json:"stage"`
}

type statusRequest struct {
	Status order.Status `json:"status"`
}

type mintRequest struct {
	DiscountCents int `json:"discount_cents"`
	MaxUses       int `json:"max_uses"`
	TTLDays       int `json:"ttl_days,omitempty"`
}

type codeResponse struct {
	Code          string     `json:"code"`
	DiscountCents int        `json:"discount_cents"`
	MaxUses       int        `json:"max_uses"`
	UsesCount     int        `json:"uses_count"`
	Active        bool       `json:"active"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

type refreshRequest struct {
	LiveBad1          *int     `json:"live_bad_1,omitempty"`
	LiveBad2          *int     `json:"live_bad_2,omitempty"`
	LiveBad3          *int     `json:"live_bad_3,omitempty"`
	LiveTotalReviews  *int     `json:"live_total_reviews,omitempty"`
	LiveAverageRating *float64 `json:"live_average_rating,omitempty"`
}

func toOrderResponse(o *order.Order) orderResponse {
	return orderResponse{
		ID:               o.ID,
		Stage:            o.Stage,
		Status:           o.Status,
		PaymentStatus:    o.PaymentStatus,
		CommissionStatus: o.CommissionStatus,
		BasePriceCents:   o.BasePriceCents,
		DiscountCents:    o.DiscountCents,
		TotalCents:       o.TotalCents,
		ReferralCode:     o.ReferralCode,
	}
}

func toOrderResponses(orders []*order.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	return out
}

// --- Handlers ---

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeReason(w, http.StatusBadRequest, "invalid_json")
		return
	}

	token, u, err := h.UserSvc.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, user.ErrInvalidCredentials) {
		writeReason(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token, Role: u.Role})
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	repID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		writeReason(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeReason(w, http.StatusBadRequest, "invalid_json")
		return
	}

	if req.BasePriceCents <= 0 {
		writeReason(w, http.StatusUnprocessableEntity, "invalid_base_price")
		return
	}

	// Team and org come from the account record, not the token.
	rep, err := h.UserSvc.GetByID(r.Context(), repID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	o, err := h.OrderSvc.Checkout(r.Context(), order.CheckoutInput{
		BasePriceCents:      req.BasePriceCents,
		ReferralCode:        req.ReferralCode,
		PaymentMethodOnFile: req.PaymentMethodOnFile,
		PlaceRef:            req.PlaceRef,
		Start: metrics.Snapshot{
			Bad1:          req.StartBad1,
			Bad2:          req.StartBad2,
			Bad3:          req.StartBad3,
			TotalReviews:  req.StartTotalReviews,
			AverageRating: req.StartAverageRating,
		},
		CreatedBy: repID,
		TeamID:    rep.TeamID,
		OrgID:     rep.OrgID,
	})
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	o, err := h.OrderSvc.GetOrder(r.Context(), id)
	if err != nil {
		h.orderError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// ListOrders is the kanban column feed; the stage filter is mandatory.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	stage := r.URL.Query().Get("stage")
	if stage == "" {
		writeReason(w, http.StatusBadRequest, "missing_stage")
		return
	}

	orders, err := h.OrderSvc.ListByStage(r.Context(), order.Stage(stage))
	if errors.Is(err, order.ErrUnknownStage) {
		writeReason(w, http.StatusUnprocessableEntity, "unknown_stage")
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

func (h *Handler) ListRepOrders(w http.ResponseWriter, r *http.Request) {
	repID, ok := pathRepID(w, r)
	if !ok {
		return
	}

	orders, err := h.OrderSvc.ListByRep(r.Context(), repID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

func (h *Handler) Progress(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	o, err := h.OrderSvc.GetOrder(r.Context(), id)
	if err != nil {
		h.orderError(w, r, err)
		return
	}

	p := h.OrderSvc.Progress(o)
	writeJSON(w, http.StatusOK, progressResponse{
		StartSum:    p.StartSum,
		LiveSum:     p.LiveSum,
		Removed:     p.Removed,
		ProgressPct: p.Pct,
		CanCapture:  h.OrderSvc.CanCapturePayment(o),
	})
}

func (h *Handler) StageChange(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req stageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeReason(w, http.StatusBadRequest, "invalid_json")
		return
	}

	change, err := h.OrderSvc.OnStageChange(r.Context(), id, req.Stage)
	if errors.Is(err, order.ErrUnknownStage) {
		writeReason(w, http.StatusUnprocessableEntity, "unknown_stage")
		return
	}
	if err != nil {
		h.orderError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, change)
}

func (h *Handler) OverrideStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeReason(w, http.StatusBadRequest, "invalid_json")
		return
	}

	err := h.OrderSvc.OverrideStatus(r.Context(), id, req.Status)
	if errors.Is(err, order.ErrUnknownStatus) {
		writeReason(w, http.StatusUnprocessableEntity, "unknown_status")
		return
	}
	if err != nil {
		h.orderError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": string(req.Status)})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeReason(w, http.StatusBadRequest, "invalid_json")
		return
	}

	live := metrics.Snapshot{
		Bad1:          req.LiveBad1,
		Bad2:          req.LiveBad2,
		Bad3:          req.LiveBad3,
		TotalReviews:  req.LiveTotalReviews,
		AverageRating: req.LiveAverageRating,
	}

	if err := h.OrderSvc.RefreshSnapshots(r.Context(), id, live, time.Now()); err != nil {
		h.orderError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Capture(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	err := h.OrderSvc.CapturePayment(r.Context(), id)
	if errors.Is(err, order.ErrCaptureNotEligible) {
		writeReason(w, http.StatusConflict, "capture_not_eligible")
		return
	}
	if err != nil {
		h.orderError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) PayCommission(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	err := h.OrderSvc.PayCommission(r.Context(), id)
	if errors.Is(err, order.ErrCommissionNotEligible) {
		writeReason(w, http.StatusConflict, "commission_not_eligible")
		return
	}
	if err != nil {
		h.orderError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) MintReferralCode(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req mintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeReason(w, http.StatusBadRequest, "invalid_json")
		return
	}

	if req.MaxUses < 1 || req.DiscountCents < 0 {
		writeReason(w, http.StatusUnprocessableEntity, "invalid_code_terms")
		return
	}

	c, err := h.ReferralSvc.Mint(r.Context(), id, req.DiscountCents, req.MaxUses,
		time.Duration(req.TTLDays)*24*time.Hour)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCodeResponse(c))
}

func (h *Handler) GetReferralCode(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	c, err := h.ReferralSvc.CodeForOrder(r.Context(), id)
	if errors.Is(err, referral.ErrCodeNotFound) {
		writeReason(w, http.StatusNotFound, "code_not_found")
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toCodeResponse(c))
}

func toCodeResponse(c *referral.Code) codeResponse {
	return codeResponse{
		Code:          c.Code,
		DiscountCents: c.DiscountCents,
		MaxUses:       c.MaxUses,
		UsesCount:     c.UsesCount,
		Active:        c.Active,
		ExpiresAt:     c.ExpiresAt,
	}
}

func (h *Handler) CommissionSummary(w http.ResponseWriter, r *http.Request) {
	repID, ok := pathRepID(w, r)
	if !ok {
		return
	}

	var month *time.Time
	if m := r.URL.Query().Get("month"); m != "" {
		parsed, err := time.Parse("2006-01", m)
		if err != nil {
			writeReason(w, http.StatusBadRequest, "invalid_month")
			return
		}
		month = &parsed
	}

	summary, err := h.CommissionSvc.Summarize(r.Context(), repID, month)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) PayAllCommissions(w http.ResponseWriter, r *http.Request) {
	repID, ok := pathRepID(w, r)
	if !ok {
		return
	}

	result, err := h.CommissionSvc.PayAll(r.Context(), repID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// --- Helpers ---

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeReason(w, http.StatusBadRequest, "invalid_order_id")
		return uuid.Nil, false
	}
	return id, true
}

func pathRepID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	n, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeReason(w, http.StatusBadRequest, "invalid_rep_id")
		return 0, false
	}
	return uint(n), true
}

func (h *Handler) orderError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, order.ErrOrderNotFound) {
		writeReason(w, http.StatusNotFound, "order_not_found")
		return
	}
	h.serverError(w, r, err)
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	logger.FromCtx(r.Context()).Error("request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeReason(w, http.StatusInternalServerError, "internal_error")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeReason(w http.ResponseWriter, code int, reason string) {
	writeJSON(w, code, map[string]string{"reason": reason})
}
