package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/mvoronov/cafeteria-system/internal/model"
	"github.com/mvoronov/cafeteria-system/internal/service"
)

type requestResponse struct {
	ID          int64  `json:"id"`
	BenefitID   int64  `json:"benefit_id"`
	UserID      int64  `json:"user_id"`
	PerformerID *int64 `json:"performer_id,omitempty"`
	Status      string `json:"status"`
	Content     string `json:"content,omitempty"`
	Comment     string `json:"comment,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toRequestResponse(req *model.BenefitRequest) requestResponse {
	return requestResponse{
		ID:          req.ID,
		BenefitID:   req.BenefitID,
		UserID:      req.UserID,
		PerformerID: req.PerformerID,
		Status:      string(req.Status),
		Content:     req.Content,
		Comment:     req.Comment,
		CreatedAt:   req.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   req.UpdatedAt.Format(time.RFC3339),
	}
}

type createRequestRequest struct {
	BenefitID int64  `json:"benefit_id"`
	Content   string `json:"content"`
}

// CreateRequest создаёт заявку текущего пользователя на льготу.
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r, w)
	if !ok {
		return
	}

	var req createRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.BenefitID <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	created, err := h.service.CreateRequest(r.Context(), actor, req.BenefitID, req.Content)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toRequestResponse(created))
}

// GetRequest возвращает заявку по идентификатору с учётом прав доступа.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r, w)
	if !ok {
		return
	}

	id, err := pathID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	req, err := h.service.GetRequest(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toRequestResponse(req))
}

// ListRequests возвращает страницу заявок по фильтрам из query-параметров.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r, w)
	if !ok {
		return
	}

	q := r.URL.Query()

	p := service.ListParams{
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
	}

	status, ok := parseStatusParam(w, q.Get("status"))
	if !ok {
		return
	}
	p.Status = status

	p.UserID = parseInt64Param(q.Get("user_id"))
	p.PerformerID = parseInt64Param(q.Get("performer_id"))
	p.LegalEntityID = parseInt64Param(q.Get("legal_entity_id"))

	if v, err := strconv.Atoi(q.Get("page")); err == nil {
		p.Page = v
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		p.Limit = v
	}

	requests, err := h.service.ListRequests(r.Context(), actor, p)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := make([]requestResponse, 0, len(requests))
	for i := range requests {
		resp = append(resp, toRequestResponse(&requests[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type updateRequestRequest struct {
	Status  *string `json:"status"`
	Content *string `json:"content"`
	Comment *string `json:"comment"`
}

// UpdateRequest выполняет переход заявки в новый статус и/или правку полей.
func (h *Handler) UpdateRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r, w)
	if !ok {
		return
	}

	id, err := pathID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req updateRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	upd := model.RequestUpdate{
		Content: req.Content,
		Comment: req.Comment,
	}
	if req.Status != nil {
		status := model.RequestStatus(*req.Status)
		upd.Status = &status
	}

	updated, err := h.service.UpdateRequest(r.Context(), actor, id, upd)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toRequestResponse(updated))
}

// DeleteRequest удаляет заявку. Доступно HR и администратору.
func (h *Handler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r, w)
	if !ok {
		return
	}

	id, err := pathID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteRequest(r.Context(), actor, id); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// ExportRequests выгружает реестр заявок в формате xlsx.
func (h *Handler) ExportRequests(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r, w)
	if !ok {
		return
	}

	q := r.URL.Query()

	status, ok := parseStatusParam(w, q.Get("status"))
	if !ok {
		return
	}

	buf, err := h.service.ExportRequests(r.Context(), actor, status, parseInt64Param(q.Get("legal_entity_id")))
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename=benefit_requests.xlsx`)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Error("write export response", zap.Error(err))
	}
}

func parseStatusParam(w http.ResponseWriter, raw string) (*model.RequestStatus, bool) {
	if raw == "" {
		return nil, true
	}
	status := model.RequestStatus(raw)
	if !status.Valid() {
		http.Error(w, "invalid status filter", http.StatusBadRequest)
		return nil, false
	}
	return &status, true
}

func parseInt64Param(raw string) *int64 {
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}
