// Package handler содержит HTTP-обработчики API кафетерия льгот.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mvoronov/cafeteria-system/internal/middleware"
	"github.com/mvoronov/cafeteria-system/internal/model"
	"github.com/mvoronov/cafeteria-system/internal/repository"
	"github.com/mvoronov/cafeteria-system/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Login(ctx context.Context, email, password string) (string, *model.User, error)
	Logout(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (*model.User, error)

	CreateUser(ctx context.Context, actor model.Actor, in service.CreateUserInput) (*model.User, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)

	ListBenefits(ctx context.Context) ([]model.Benefit, error)
	GetBenefit(ctx context.Context, id int64) (*model.Benefit, error)
	CreateBenefit(ctx context.Context, actor model.Actor, b *model.Benefit) (*model.Benefit, error)
	UpdateBenefit(ctx context.Context, actor model.Actor, id int64, upd repository.BenefitUpdate) (*model.Benefit, error)
	DeleteBenefit(ctx context.Context, actor model.Actor, id int64) error

	CreateRequest(ctx context.Context, actor model.Actor, benefitID int64, content string) (*model.BenefitRequest, error)
	GetRequest(ctx context.Context, actor model.Actor, id int64) (*model.BenefitRequest, error)
	ListRequests(ctx context.Context, actor model.Actor, p service.ListParams) ([]model.BenefitRequest, error)
	UpdateRequest(ctx context.Context, actor model.Actor, id int64, upd model.RequestUpdate) (*model.BenefitRequest, error)
	DeleteRequest(ctx context.Context, actor model.Actor, id int64) error
	ExportRequests(ctx context.Context, actor model.Actor, status *model.RequestStatus, legalEntityID *int64) (*bytes.Buffer, error)
}

// Handler реализует HTTP-обработчики API кафетерия льгот.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: s,
		logger:  logger,
	}
}

// writeError переводит ошибку сервисного слоя в HTTP-статус:
// not found — 404, запрет доступа — 403, нарушение бизнес-правила — 400.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrBenefitNotFound),
		errors.Is(err, repository.ErrRequestNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)

	case errors.Is(err, repository.ErrPermissionDenied),
		errors.Is(err, repository.ErrAlreadyClaimed):
		http.Error(w, err.Error(), http.StatusForbidden)

	case errors.Is(err, repository.ErrNotAdapted),
		errors.Is(err, repository.ErrInsufficientCoins),
		errors.Is(err, repository.ErrInsufficientLevel),
		errors.Is(err, repository.ErrInsufficientAmount),
		errors.Is(err, repository.ErrRequestTerminal),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrNoRequestsToExport):
		http.Error(w, err.Error(), http.StatusBadRequest)

	case errors.Is(err, repository.ErrUserExists):
		http.Error(w, err.Error(), http.StatusConflict)

	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, repository.ErrSessionNotFound):
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)

	default:
		h.logger.Error("internal error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func actorFrom(r *http.Request, w http.ResponseWriter) (model.Actor, bool) {
	actor, ok := middleware.GetActorFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	}
	return actor, ok
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login выполняет аутентификацию пользователя и устанавливает cookie сессии.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	token, user, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}

	middleware.SetSessionCookie(w, token)
	h.writeJSON(w, http.StatusOK, toUserResponse(user))
}

// Logout закрывает сессию текущего пользователя.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil {
		if err := h.service.Logout(r.Context(), cookie.Value); err != nil {
			h.writeError(w, err)
			return
		}
	}

	middleware.ClearSessionCookie(w)
	w.WriteHeader(http.StatusOK)
}

type userResponse struct {
	ID            int64  `json:"id"`
	Email         string `json:"email"`
	Firstname     string `json:"firstname"`
	Lastname      string `json:"lastname"`
	Role          string `json:"role"`
	Coins         int64  `json:"coins"`
	LegalEntityID *int64 `json:"legal_entity_id,omitempty"`
	IsAdapted     bool   `json:"is_adapted"`
	HiredAt       string `json:"hired_at"`
	Level         int64  `json:"level"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:            u.ID,
		Email:         u.Email,
		Firstname:     u.Firstname,
		Lastname:      u.Lastname,
		Role:          string(u.Role),
		Coins:         u.Coins,
		LegalEntityID: u.LegalEntityID,
		IsAdapted:     u.IsAdapted,
		HiredAt:       u.HiredAt.Format("2006-01-02"),
		Level:         u.Level(time.Now()),
	}
}

// GetMe возвращает профиль текущего пользователя.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r, w)
	if !ok {
		return
	}

	user, err := h.service.GetUser(r.Context(), actor.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toUserResponse(user))
}

type createUserRequest struct {
	Email         string `json:"email"`
	Firstname     string `json:"firstname"`
	Lastname      string `json:"lastname"`
	Password      string `json:"password"`
	Role          string `json:"role"`
	Coins         int64  `json:"coins"`
	LegalEntityID *int64 `json:"legal_entity_id"`
	IsAdapted     bool   `json:"is_adapted"`
	HiredAt       string `json:"hired_at"`
}

// CreateUser создаёт нового пользователя. Доступно только администратору.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r, w)
	if !ok {
		return
	}

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" || !model.UserRole(req.Role).Valid() {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	hiredAt, err := time.Parse("2006-01-02", req.HiredAt)
	if err != nil {
		http.Error(w, "invalid hired_at date", http.StatusBadRequest)
		return
	}

	user, err := h.service.CreateUser(r.Context(), actor, service.CreateUserInput{
		Email:         req.Email,
		Firstname:     req.Firstname,
		Lastname:      req.Lastname,
		Password:      req.Password,
		Role:          model.UserRole(req.Role),
		Coins:         req.Coins,
		LegalEntityID: req.LegalEntityID,
		IsAdapted:     req.IsAdapted,
		HiredAt:       hiredAt,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toUserResponse(user))
}

type benefitResponse struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	Description        string `json:"description"`
	CoinsCost          int64  `json:"coins_cost"`
	MinLevelCost       int64  `json:"min_level_cost"`
	AdaptationRequired bool   `json:"adaptation_required"`
	Amount             *int64 `json:"amount"`
	ImageURL           string `json:"image_url"`
}

func toBenefitResponse(b *model.Benefit) benefitResponse {
	return benefitResponse{
		ID:                 b.ID,
		Name:               b.Name,
		Description:        b.Description,
		CoinsCost:          b.CoinsCost,
		MinLevelCost:       b.MinLevelCost,
		AdaptationRequired: b.AdaptationRequired,
		Amount:             b.Amount,
		ImageURL:           b.ImageURL,
	}
}

// ListBenefits возвращает каталог льгот.
func (h *Handler) ListBenefits(w http.ResponseWriter, r *http.Request) {
	benefits, err := h.service.ListBenefits(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := make([]benefitResponse, 0, len(benefits))
	for i := range benefits {
		resp = append(resp, toBenefitResponse(&benefits[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// GetBenefit возвращает льготу по идентификатору.
func (h *Handler) GetBenefit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	benefit, err := h.service.GetBenefit(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toBenefitResponse(benefit))
}

type createBenefitRequest struct {
	Name               string `json:"name"`
	Description        string `json:"description"`
	CoinsCost          int64  `json:"coins_cost"`
	MinLevelCost       int64  `json:"min_level_cost"`
	AdaptationRequired bool   `json:"adaptation_required"`
	Amount             *int64 `json:"amount"`
	ImageURL           string `json:"image_url"`
}

// CreateBenefit добавляет льготу в каталог. Доступно только администратору.
func (h *Handler) CreateBenefit(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r, w)
	if !ok {
		return
	}

	var req createBenefitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Name == "" || req.CoinsCost < 0 || req.MinLevelCost < 0 || (req.Amount != nil && *req.Amount < 0) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	benefit, err := h.service.CreateBenefit(r.Context(), actor, &model.Benefit{
		Name:               req.Name,
		Description:        req.Description,
		CoinsCost:          req.CoinsCost,
		MinLevelCost:       req.MinLevelCost,
		AdaptationRequired: req.AdaptationRequired,
		Amount:             req.Amount,
		ImageURL:           req.ImageURL,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toBenefitResponse(benefit))
}

type updateBenefitRequest struct {
	Name               *string `json:"name"`
	Description        *string `json:"description"`
	CoinsCost          *int64  `json:"coins_cost"`
	MinLevelCost       *int64  `json:"min_level_cost"`
	AdaptationRequired *bool   `json:"adaptation_required"`
	Amount             *int64  `json:"amount"`
	Unlimited          *bool   `json:"unlimited"`
	ImageURL           *string `json:"image_url"`
}

// UpdateBenefit изменяет льготу. Доступно только администратору.
// Поле unlimited=true переводит льготу в безлимитный остаток.
func (h *Handler) UpdateBenefit(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r, w)
	if !ok {
		return
	}

	id, err := pathID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req updateBenefitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Amount != nil && *req.Amount < 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	upd := repository.BenefitUpdate{
		Name:               req.Name,
		Description:        req.Description,
		CoinsCost:          req.CoinsCost,
		MinLevelCost:       req.MinLevelCost,
		AdaptationRequired: req.AdaptationRequired,
		ImageURL:           req.ImageURL,
	}
	if req.Unlimited != nil && *req.Unlimited {
		var unlimited *int64
		upd.Amount = &unlimited
	} else if req.Amount != nil {
		upd.Amount = &req.Amount
	}

	benefit, err := h.service.UpdateBenefit(r.Context(), actor, id, upd)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toBenefitResponse(benefit))
}

// DeleteBenefit удаляет льготу из каталога. Доступно только администратору.
func (h *Handler) DeleteBenefit(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r, w)
	if !ok {
		return
	}

	id, err := pathID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteBenefit(r.Context(), actor, id); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}
