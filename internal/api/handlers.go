// Package api exposes the engine over HTTP: trigger ingress, campaign
// lifecycle, segments, automation controls, and analytics.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/marketing-engine/internal/analytics"
	"github.com/ignite/marketing-engine/internal/automation"
	"github.com/ignite/marketing-engine/internal/domain"
	"github.com/ignite/marketing-engine/internal/maintenance"
	"github.com/ignite/marketing-engine/internal/pkg/httputil"
	"github.com/ignite/marketing-engine/internal/segment"
	"github.com/ignite/marketing-engine/internal/service/campaign"
)

// Handlers bundles the services the API fronts.
type Handlers struct {
	Scheduler       *automation.Scheduler
	AutomationStore *automation.Store
	Campaigns       *campaign.Service
	Segments        *segment.Store
	Resolver        *segment.Resolver
	Analytics       *analytics.Aggregator
	Maintenance     *maintenance.Runner
}

// HandleHealth reports liveness.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok"})
}

type triggerRequest struct {
	Event string `json:"event"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// HandleTrigger is the ingress for business events from signup forms,
// checkout, and other collaborators.
func (h *Handlers) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	created, err := h.Scheduler.Trigger(r.Context(), req.Event, req.Email, req.Name)
	switch {
	case errors.Is(err, automation.ErrInvalidEvent),
		errors.Is(err, automation.ErrInvalidRecipient):
		httputil.BadRequest(w, err.Error())
		return
	case err != nil:
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]int{"queued_items": created})
}

// HandleCreateCampaign creates a draft campaign.
func (h *Handlers) HandleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var input campaign.CreateInput
	if !httputil.Decode(w, r, &input) {
		return
	}

	c, err := h.Campaigns.Create(r.Context(), input)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.Created(w, c)
}

// HandleListCampaigns lists campaigns with optional status filtering.
func (h *Handlers) HandleListCampaigns(w http.ResponseWriter, r *http.Request) {
	f := campaign.ListFilter{
		Status: r.URL.Query().Get("status"),
		Limit:  50,
	}

	list, total, err := h.Campaigns.List(r.Context(), f)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"campaigns": list, "total": total})
}

// HandleGetCampaign returns one campaign.
func (h *Handlers) HandleGetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.Campaigns.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.campaignError(w, err)
		return
	}
	httputil.OK(w, c)
}

// HandleSendCampaign starts a full campaign send.
func (h *Handlers) HandleSendCampaign(w http.ResponseWriter, r *http.Request) {
	report, err := h.Campaigns.Send(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.campaignError(w, err)
		return
	}
	httputil.OK(w, report)
}

type testSendRequest struct {
	Email string `json:"email"`
}

// HandleTestCampaign sends the campaign to a single test address.
func (h *Handlers) HandleTestCampaign(w http.ResponseWriter, r *http.Request) {
	var req testSendRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	if err := h.Campaigns.SendTest(r.Context(), chi.URLParam(r, "id"), req.Email); err != nil {
		h.campaignError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": "sent"})
}

type scheduleRequest struct {
	At time.Time `json:"at"`
}

// HandleScheduleCampaign sets a draft campaign to send at a future time.
func (h *Handlers) HandleScheduleCampaign(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	if err := h.Campaigns.Schedule(r.Context(), chi.URLParam(r, "id"), req.At); err != nil {
		h.campaignError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": "scheduled"})
}

// HandlePreflight runs the send-readiness checks without sending.
func (h *Handlers) HandlePreflight(w http.ResponseWriter, r *http.Request) {
	c, err := h.Campaigns.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.campaignError(w, err)
		return
	}
	httputil.OK(w, h.Campaigns.Preflight(c))
}

// HandleCampaignStats returns counts, rates, click breakdown, and timeline.
func (h *Handlers) HandleCampaignStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	stats, err := h.Analytics.CampaignStats(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	breakdown, err := h.Analytics.ClickBreakdown(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	timeline, err := h.Analytics.Timeline(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	httputil.OK(w, map[string]interface{}{
		"stats":           stats,
		"click_breakdown": breakdown,
		"timeline":        timeline,
	})
}

// HandleCreateSegment saves a reusable audience filter.
func (h *Handlers) HandleCreateSegment(w http.ResponseWriter, r *http.Request) {
	var seg domain.Segment
	if !httputil.Decode(w, r, &seg) {
		return
	}
	if seg.Name == "" {
		httputil.BadRequest(w, "name is required")
		return
	}

	if err := h.Segments.Create(r.Context(), &seg); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, seg)
}

// HandleListSegments lists saved segments.
func (h *Handlers) HandleListSegments(w http.ResponseWriter, r *http.Request) {
	segs, err := h.Segments.List(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"segments": segs})
}

// HandlePreviewSegment counts how many subscribers an audience currently
// matches without materializing the list.
func (h *Handlers) HandlePreviewSegment(w http.ResponseWriter, r *http.Request) {
	var aud domain.Audience
	if !httputil.Decode(w, r, &aud) {
		return
	}

	n, err := h.Resolver.Count(r.Context(), aud)
	if err != nil {
		if errors.Is(err, segment.ErrNotFound) {
			httputil.NotFound(w, "segment not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]int{"recipients": n})
}

// HandlePauseAutomation pauses an automation and cancels its scheduled
// queue items.
func (h *Handlers) HandlePauseAutomation(w http.ResponseWriter, r *http.Request) {
	cancelled, err := h.AutomationStore.Pause(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, automation.ErrNotFound) {
			httputil.NotFound(w, "automation not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]int64{"cancelled_items": cancelled})
}

// HandleActivateAutomation resumes a paused automation.
func (h *Handlers) HandleActivateAutomation(w http.ResponseWriter, r *http.Request) {
	if err := h.AutomationStore.Activate(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, automation.ErrNotFound) {
			httputil.NotFound(w, "automation not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": "active"})
}

// HandleQueueStats reports queue counts by status.
func (h *Handlers) HandleQueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.AutomationStore.Stats(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, stats)
}

// HandleRunMaintenance runs one maintenance pass. The external scheduler
// normally hits this; manual invocations are safe because of the lock.
func (h *Handlers) HandleRunMaintenance(w http.ResponseWriter, r *http.Request) {
	// Detach from the request context so a dropped trigger connection
	// cannot abort a half-finished pass.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	report, err := h.Maintenance.RunScheduledMaintenance(ctx)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, report)
}

func (h *Handlers) campaignError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, campaign.ErrNotFound):
		httputil.NotFound(w, "campaign not found")
	case errors.Is(err, campaign.ErrAlreadySent),
		errors.Is(err, campaign.ErrInvalidTransition):
		httputil.Conflict(w, err.Error())
	case errors.Is(err, campaign.ErrPreflightFailed),
		errors.Is(err, campaign.ErrNoRecipients),
		errors.Is(err, campaign.ErrNotDraft):
		httputil.BadRequest(w, err.Error())
	default:
		httputil.InternalError(w, err)
	}
}
