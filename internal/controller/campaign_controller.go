// internal/controller/campaign_controller.go
package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/lurehook/lurehook-backend/internal/errors"
	"github.com/lurehook/lurehook-backend/internal/service"
)

type CampaignController struct {
	Service *service.CampaignService
	Logger  *zap.Logger
}

// companyID resolves the tenant from the X-Company-ID header. Auth proper
// lives upstream; this service only scopes queries by tenant.
func companyID(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get("X-Company-ID")
	if raw == "" {
		return uuid.Nil, appErrors.NewValidation("missing X-Company-ID header")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, appErrors.NewValidation("invalid X-Company-ID header")
	}
	return id, nil
}

func campaignID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, appErrors.NewValidation("invalid campaign id")
	}
	return id, nil
}

func (c *CampaignController) writeError(w http.ResponseWriter, err error) {
	var (
		validation *appErrors.ValidationError
		state      *appErrors.InvalidStateError
		authz      *appErrors.AuthorizationError
		notFound   *appErrors.NotFoundError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &validation), errors.As(err, &state):
		status = http.StatusBadRequest
	case errors.As(err, &authz):
		status = http.StatusForbidden
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	default:
		c.Logger.Error("request failed", zap.Error(err))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (c *CampaignController) Create(w http.ResponseWriter, r *http.Request) {
	company, err := companyID(r)
	if err != nil {
		c.writeError(w, err)
		return
	}

	var body struct {
		Name         string      `json:"name"`
		Description  string      `json:"description"`
		TemplateID   *uuid.UUID  `json:"template_id"`
		RecipientIDs []uuid.UUID `json:"recipient_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		c.writeError(w, appErrors.NewValidation("invalid body"))
		return
	}

	campaign, err := c.Service.Create(company, service.CreateCampaignInput{
		Name:         body.Name,
		Description:  body.Description,
		TemplateID:   body.TemplateID,
		RecipientIDs: body.RecipientIDs,
	})
	if err != nil {
		c.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, campaign)
}

func (c *CampaignController) List(w http.ResponseWriter, r *http.Request) {
	company, err := companyID(r)
	if err != nil {
		c.writeError(w, err)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	status := r.URL.Query().Get("status")

	campaigns, pagination, err := c.Service.List(company, page, pageSize, status)
	if err != nil {
		c.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":       campaigns,
		"pagination": pagination,
	})
}

func (c *CampaignController) Get(w http.ResponseWriter, r *http.Request) {
	company, err := companyID(r)
	if err != nil {
		c.writeError(w, err)
		return
	}
	id, err := campaignID(r)
	if err != nil {
		c.writeError(w, err)
		return
	}

	campaign, err := c.Service.Get(company, id)
	if err != nil {
		c.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) Delete(w http.ResponseWriter, r *http.Request) {
	company, err := companyID(r)
	if err != nil {
		c.writeError(w, err)
		return
	}
	id, err := campaignID(r)
	if err != nil {
		c.writeError(w, err)
		return
	}

	if err := c.Service.Delete(company, id); err != nil {
		c.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *CampaignController) Stats(w http.ResponseWriter, r *http.Request) {
	company, err := companyID(r)
	if err != nil {
		c.writeError(w, err)
		return
	}
	id, err := campaignID(r)
	if err != nil {
		c.writeError(w, err)
		return
	}

	stats, err := c.Service.Stats(company, id)
	if err != nil {
		c.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (c *CampaignController) AddTargets(w http.ResponseWriter, r *http.Request) {
	company, err := companyID(r)
	if err != nil {
		c.writeError(w, err)
		return
	}
	id, err := campaignID(r)
	if err != nil {
		c.writeError(w, err)
		return
	}

	var body struct {
		RecipientIDs []uuid.UUID `json:"recipient_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		c.writeError(w, appErrors.NewValidation("invalid body"))
		return
	}

	targets, err := c.Service.AddTargets(company, id, body.RecipientIDs)
	if err != nil {
		c.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"targets_added": len(targets),
		"targets":       targets,
	})
}

func (c *CampaignController) Schedule(w http.ResponseWriter, r *http.Request) {
	company, err := companyID(r)
	if err != nil {
		c.writeError(w, err)
		return
	}
	id, err := campaignID(r)
	if err != nil {
		c.writeError(w, err)
		return
	}

	var body struct {
		ScheduledAt string `json:"scheduled_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		c.writeError(w, appErrors.NewValidation("invalid body"))
		return
	}
	at, err := time.Parse(time.RFC3339, body.ScheduledAt)
	if err != nil {
		c.writeError(w, appErrors.NewValidation("scheduled_at must be RFC3339"))
		return
	}

	campaign, err := c.Service.Schedule(company, id, at)
	if err != nil {
		c.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) Start(w http.ResponseWriter, r *http.Request) {
	company, err := companyID(r)
	if err != nil {
		c.writeError(w, err)
		return
	}
	id, err := campaignID(r)
	if err != nil {
		c.writeError(w, err)
		return
	}

	campaign, err := c.Service.Start(company, id)
	if err != nil {
		c.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) Stop(w http.ResponseWriter, r *http.Request) {
	company, err := companyID(r)
	if err != nil {
		c.writeError(w, err)
		return
	}
	id, err := campaignID(r)
	if err != nil {
		c.writeError(w, err)
		return
	}

	campaign, err := c.Service.Stop(company, id)
	if err != nil {
		c.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}
