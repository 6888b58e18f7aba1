package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-storefront-orders/internal/apperr"
	"github.com/imrishuroy/go-storefront-orders/internal/auth"
	"github.com/imrishuroy/go-storefront-orders/internal/customrequests"
	"github.com/imrishuroy/go-storefront-orders/internal/idempotency"
	"github.com/imrishuroy/go-storefront-orders/internal/validation"
)

// requestView adds the derived fields to a request.
type requestView struct {
	*customrequests.Request
	DaysSinceSubmission int  `json:"daysSinceSubmission"`
	IsOverdue           bool `json:"isOverdue"`
}

func viewOf(r *customrequests.Request) requestView {
	now := time.Now()
	return requestView{Request: r, DaysSinceSubmission: r.DaysSinceSubmission(now), IsOverdue: r.IsOverdue(now)}
}

func toCustomRequest(req validation.CreateCustomRequest) customrequests.Request {
	r := customrequests.Request{
		ContactInfo: customrequests.ContactInfo{
			Name: req.ContactInfo.Name, Email: req.ContactInfo.Email, Phone: req.ContactInfo.Phone,
		},
		DressDetails: customrequests.DressDetails{
			Type:                req.DressDetails.Type,
			Occasion:            req.DressDetails.Occasion,
			PreferredStyle:      req.DressDetails.PreferredStyle,
			Description:         req.DressDetails.Description,
			Colors:              req.DressDetails.Colors,
			Materials:           req.DressDetails.Materials,
			SpecialRequirements: req.DressDetails.SpecialRequirements,
		},
		Measurements: customrequests.Measurements{
			Bust: req.Measurements.Bust, Waist: req.Measurements.Waist, Hips: req.Measurements.Hips,
			Height: req.Measurements.Height, ShoulderWidth: req.Measurements.ShoulderWidth,
			ArmLength: req.Measurements.ArmLength, DressLength: req.Measurements.DressLength,
		},
		Budget: customrequests.Budget{Min: req.Budget.Min, Max: req.Budget.Max, Currency: req.Budget.Currency},
		Timeline: customrequests.Timeline{
			PreferredDate: req.Timeline.PreferredDate,
			IsFlexible:    true,
			Urgency:       req.Timeline.Urgency,
		},
		Tags: req.Tags,
	}
	if req.Timeline.IsFlexible != nil {
		r.Timeline.IsFlexible = *req.Timeline.IsFlexible
	}
	for _, m := range req.Measurements.Additional {
		r.Measurements.Additional = append(r.Measurements.Additional, customrequests.Measurement{
			Name: m.Name, Value: m.Value, Unit: m.Unit,
		})
	}
	return r
}

// createCustomRequest accepts guest and signed-in submissions. For signed-in
// callers an Idempotency-Key records the first response and replays it.
func (h *handler) createCustomRequest(c *gin.Context) {
	ctx := c.Request.Context()

	var req validation.CreateCustomRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	user, _ := auth.CurrentUser(c)

	// guests have no identity to scope a key by, so their keys are ignored
	var key string
	if raw := c.GetHeader(HeaderIdempotencyKey); raw != "" && h.idem != nil && user.ID != "" {
		key = idempotency.ScopedKey("custom-request:"+user.ID, raw)
		created, err := h.idem.CreateIfNotExists(ctx, key, "")
		if err != nil {
			h.writeError(c, apperr.Wrap(apperr.KindStoreUnavailable, err, "Idempotency check failed"))
			return
		}
		if !created {
			// a failed first attempt may be retried once under the same key
			reclaimed, err := h.idem.Reclaim(ctx, key)
			if err != nil {
				h.writeError(c, apperr.Wrap(apperr.KindStoreUnavailable, err, "Idempotency check failed"))
				return
			}
			if !reclaimed {
				h.replay(c, key)
				return
			}
		}
	}

	r, err := h.requests.Submit(ctx, user.ID, toCustomRequest(req))
	if err != nil {
		if key != "" {
			if merr := h.idem.MarkFailed(ctx, key, fmt.Sprintf("submit failed: %v", err)); merr != nil {
				h.log.WarnContext(ctx, "mark idempotency failed failed", slog.Any("error", merr))
			}
		}
		h.writeError(c, err)
		return
	}

	body := gin.H{"message": "Custom request submitted successfully", "request": viewOf(r)}
	if key != "" {
		responseBody, _ := json.Marshal(body)
		if err := h.idem.MarkDone(ctx, key, string(responseBody), http.StatusCreated); err != nil {
			h.log.WarnContext(ctx, "mark idempotency done failed",
				slog.String("request_id", r.RequestID), slog.Any("error", err))
		}
	}
	c.Header("Location", fmt.Sprintf("/api/custom-requests/%s", r.RequestID))
	c.JSON(http.StatusCreated, body)
}

func (h *handler) myCustomRequests(c *gin.Context) {
	page, limit, err := pageParams(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	user, _ := auth.CurrentUser(c)
	res, err := h.requests.ListMine(c.Request.Context(), user.ID, customrequests.Status(c.Query("status")), page, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	views := make([]requestView, 0, len(res.Requests))
	for i := range res.Requests {
		views = append(views, viewOf(&res.Requests[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"message":    "Custom requests retrieved successfully",
		"requests":   views,
		"pagination": res.Pagination,
	})
}

func (h *handler) getCustomRequest(c *gin.Context) {
	r, err := h.requests.Get(c.Request.Context(), h.requestActor(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Custom request retrieved successfully", "request": viewOf(r)})
}

func (h *handler) addCommunication(c *gin.Context) {
	var req validation.AddCommunicationRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	comm, err := h.requests.AddCommunication(c.Request.Context(), h.requestActor(c), c.Param("id"), req.Message)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Communication added successfully", "communication": comm})
}

func (h *handler) updateCustomRequestStatus(c *gin.Context) {
	var req validation.UpdateCustomRequestStatusRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	var resp *customrequests.AdminResponse
	if ar := req.AdminResponse; ar != nil {
		resp = &customrequests.AdminResponse{EstimatedCompletion: ar.EstimatedCompletion, Notes: ar.Notes}
		if q := ar.Quote; q != nil {
			quote := &customrequests.Quote{Amount: q.Amount, Currency: q.Currency}
			for _, line := range q.Breakdown {
				quote.Breakdown = append(quote.Breakdown, customrequests.QuoteLine{Item: line.Item, Cost: line.Cost})
			}
			resp.Quote = quote
		}
	}
	r, err := h.requests.SetStatus(c.Request.Context(), h.requestActor(c), c.Param("id"), customrequests.Status(req.Status), resp)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Custom request updated successfully", "request": viewOf(r)})
}
