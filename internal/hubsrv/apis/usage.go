package apis

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/makerhub/makerhub/internal/common/httpx"
	"github.com/makerhub/makerhub/internal/hubsrv/store"
	"github.com/makerhub/makerhub/internal/hubsrv/usage"
)

type startSessionRequest struct {
	Notes                    string `json:"notes"`
	ForceTakeOver            bool   `json:"forceTakeOver"`
	EstimatedDurationMinutes int    `json:"estimatedDurationMinutes" validate:"gte=0"`
}

type endSessionRequest struct {
	Notes string `json:"notes"`
}

// sessionRsp decorates a session with its derived duration.
type sessionRsp struct {
	*store.UsageSession
	UsageInMinutes int `json:"usageInMinutes"`
}

func toSessionRsp(s *store.UsageSession) *sessionRsp {
	return &sessionRsp{UsageSession: s, UsageInMinutes: s.UsageInMinutes()}
}

type usageHistoryRsp struct {
	Sessions []*sessionRsp `json:"sessions"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	Limit    int           `json:"limit"`
}

func (h *Handler) startSession(r *http.Request) (*httpx.Response, error) {
	actor, err := actorFromRequest(r)
	if err != nil {
		return nil, err
	}
	resourceID, err := uuidParam(r, "resourceId")
	if err != nil {
		return nil, err
	}
	var req startSessionRequest
	if err := httpx.GetRequestData(r, &req); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, httpx.ErrInvalidRequest(err.Error())
	}
	sess, aerr := h.tracker.StartSession(r.Context(), resourceID, actor, usage.StartRequest{
		Notes:                    req.Notes,
		ForceTakeOver:            req.ForceTakeOver,
		EstimatedDurationMinutes: req.EstimatedDurationMinutes,
	})
	if aerr != nil {
		return nil, aerr
	}
	return &httpx.Response{StatusCode: http.StatusCreated, Response: toSessionRsp(sess)}, nil
}

func (h *Handler) endSession(r *http.Request) (*httpx.Response, error) {
	actor, err := actorFromRequest(r)
	if err != nil {
		return nil, err
	}
	resourceID, err := uuidParam(r, "resourceId")
	if err != nil {
		return nil, err
	}
	var req endSessionRequest
	if err := httpx.GetRequestData(r, &req); err != nil {
		return nil, err
	}
	sess, aerr := h.tracker.EndSession(r.Context(), resourceID, actor, usage.EndRequest{Notes: req.Notes})
	if aerr != nil {
		return nil, aerr
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: toSessionRsp(sess)}, nil
}

func (h *Handler) getActiveSession(r *http.Request) (*httpx.Response, error) {
	resourceID, err := uuidParam(r, "resourceId")
	if err != nil {
		return nil, err
	}
	sess, aerr := h.tracker.GetActiveSession(r.Context(), resourceID)
	if aerr != nil {
		return nil, aerr
	}
	if sess == nil {
		return &httpx.Response{StatusCode: http.StatusOK, Response: nil}, nil
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: toSessionRsp(sess)}, nil
}

func (h *Handler) getUsageHistory(r *http.Request) (*httpx.Response, error) {
	resourceID, err := uuidParam(r, "resourceId")
	if err != nil {
		return nil, err
	}
	page, limit := pageParams(r, 10)
	var userID *uuid.UUID
	if raw := r.URL.Query().Get("userId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, httpx.ErrInvalidRequest("invalid userId")
		}
		userID = &id
	}
	sessions, total, aerr := h.tracker.History(r.Context(), resourceID, page, limit, userID)
	if aerr != nil {
		return nil, aerr
	}
	rsp := &usageHistoryRsp{
		Sessions: make([]*sessionRsp, 0, len(sessions)),
		Total:    total,
		Page:     page,
		Limit:    limit,
	}
	for i := range sessions {
		rsp.Sessions = append(rsp.Sessions, toSessionRsp(&sessions[i]))
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: rsp}, nil
}
