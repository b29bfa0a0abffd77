package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"lead-intake/internal/audit"
	"lead-intake/internal/leads"
	"lead-intake/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Leads *leads.Service
	Audit *audit.Service
	// Production hides error detail from responses.
	Production bool
}

const (
	defaultPage      = 1
	defaultLimit     = 10
	defaultSortBy    = string(leads.SortByCreatedAt)
	defaultSortOrder = leads.SortDesc

	ginKeyLeadID = "created_lead_id"
)

// CreateLead handles POST /api/leads.
func (h Handlers) CreateLead(c *gin.Context) {
	var in leads.CreateLeadInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, http.StatusBadRequest, "invalid JSON payload", []leads.FieldError{{Field: "payload", Reason: "must be a JSON object"}})
		return
	}

	lead, err := h.Leads.CreateLead(c.Request.Context(), in)
	if err != nil {
		h.leadError(c, err)
		return
	}

	c.Set(ginKeyLeadID, lead.ID)
	respond(c, http.StatusCreated, "Lead created successfully", lead)
}

// ListLeads handles GET /api/leads.
func (h Handlers) ListLeads(c *gin.Context) {
	page, perr := queryInt(c, "page", defaultPage)
	limit, lerr := queryInt(c, "limit", defaultLimit)
	if err := errors.Join(perr, lerr); err != nil {
		respondError(c, http.StatusBadRequest, "invalid query parameters", []string{err.Error()})
		return
	}

	res, err := h.Leads.ListLeads(c.Request.Context(), leads.ListQuery{
		Page:      page,
		Limit:     limit,
		SortBy:    c.DefaultQuery("sortBy", defaultSortBy),
		SortOrder: strings.ToUpper(c.DefaultQuery("sortOrder", defaultSortOrder)),
	})
	if err != nil {
		h.leadError(c, err)
		return
	}
	respond(c, http.StatusOK, "Leads retrieved successfully", res)
}

// GetLead handles GET /api/leads/:id.
func (h Handlers) GetLead(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, http.StatusBadRequest, "invalid lead id", nil)
		return
	}
	lead, err := h.Leads.GetLead(c.Request.Context(), id)
	if err != nil {
		h.leadError(c, err)
		return
	}
	respond(c, http.StatusOK, "Lead retrieved successfully", lead)
}

// leadError maps a leads error kind to a response.
func (h Handlers) leadError(c *gin.Context, err error) {
	switch leads.KindOf(err) {
	case leads.KindValidationFailed:
		var verr *leads.ValidationError
		errors.As(err, &verr)
		respondError(c, http.StatusBadRequest, "Validation failed", verr.Fields)
	case leads.KindDuplicateLead:
		respondError(c, http.StatusConflict, "A lead with this email already exists", nil)
	case leads.KindRateLimited:
		c.Header("Retry-After", "60")
		respondError(c, http.StatusTooManyRequests, "Too many submissions, please retry later", nil)
	case leads.KindInvalidArgument:
		respondError(c, http.StatusBadRequest, "invalid query parameters", []string{strings.TrimPrefix(err.Error(), leads.ErrInvalidArgument.Error()+": ")})
	case leads.KindNotFound:
		respondError(c, http.StatusNotFound, "Lead not found", nil)
	default:
		logger.FromGin(c).Error("lead request failed", "err", err)
		h.respondFailure(c, "An error occurred while processing your request", err)
	}
}

// AuditStats handles GET /api/admin/audit/stats.
func (h Handlers) AuditStats(c *gin.Context) {
	st, err := h.Audit.Stats(c.Request.Context())
	if err != nil {
		h.respondFailure(c, "audit stats unavailable", err)
		return
	}
	respond(c, http.StatusOK, "Audit stats", st)
}

// AuditFailed handles GET /api/admin/audit/failed?limit=.
func (h Handlers) AuditFailed(c *gin.Context) {
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid query parameters", []string{err.Error()})
		return
	}
	recs, err := h.Audit.ListFailed(c.Request.Context(), limit)
	if err != nil {
		h.auditError(c, err)
		return
	}
	respond(c, http.StatusOK, "Failed requests", recs)
}

// AuditSlow handles GET /api/admin/audit/slow?threshold=&limit=.
func (h Handlers) AuditSlow(c *gin.Context) {
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid query parameters", []string{err.Error()})
		return
	}
	var threshold float64
	if raw := c.Query("threshold"); raw != "" {
		if threshold, err = strconv.ParseFloat(raw, 64); err != nil {
			respondError(c, http.StatusBadRequest, "invalid query parameters", []string{"threshold must be a number of seconds"})
			return
		}
	}
	recs, err := h.Audit.ListSlow(c.Request.Context(), threshold, limit)
	if err != nil {
		h.auditError(c, err)
		return
	}
	respond(c, http.StatusOK, "Slow requests", recs)
}

// AuditRecord handles GET /api/admin/audit/:id.
func (h Handlers) AuditRecord(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid audit id", nil)
		return
	}
	rec, err := h.Audit.Get(c.Request.Context(), id)
	if err != nil {
		h.auditError(c, err)
		return
	}
	respond(c, http.StatusOK, "Audit record", rec)
}

func (h Handlers) auditError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, audit.ErrInvalidArgument):
		respondError(c, http.StatusBadRequest, "invalid query parameters", nil)
	case errors.Is(err, audit.ErrNotFound):
		respondError(c, http.StatusNotFound, "Audit record not found", nil)
	default:
		h.respondFailure(c, "audit lookup failed", err)
	}
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(key + " must be an integer")
	}
	return n, nil
}
