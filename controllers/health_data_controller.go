package controllers

import (
	"net/http"
	"strings"
	"time"

	"backend/services"

	"github.com/gin-gonic/gin"
)

type HealthDataController struct {
	Svc   *services.HealthDataService
	Dedup *services.DedupService
}

func NewHealthDataController(svc *services.HealthDataService, dedup *services.DedupService) *HealthDataController {
	return &HealthDataController{Svc: svc, Dedup: dedup}
}

// GET /health/records?metrics=weight,steps&from=2026-08-01&to=2026-08-29&all=false
func (h *HealthDataController) ListRecords(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	q := services.RecordQuery{CanonicalOnly: c.DefaultQuery("all", "false") != "true"}
	if m := c.Query("metrics"); m != "" {
		q.Metrics = strings.Split(m, ",")
	}
	var err error
	if q.From, err = parseDateQuery(c, "from"); err != nil {
		return
	}
	if q.To, err = parseDateQuery(c, "to"); err != nil {
		return
	}
	if !q.To.IsZero() {
		q.To = q.To.AddDate(0, 0, 1) // inclusive end date
	}

	records, err := h.Svc.ListRecords(c.Request.Context(), userID, q)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, records)
}

func (h *HealthDataController) CreateEvent(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var input services.EventInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	ev, err := h.Svc.CreateEvent(c.Request.Context(), userID, input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, ev)
}

func (h *HealthDataController) ListEvents(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	from, err := parseDateQuery(c, "from")
	if err != nil {
		return
	}
	to, err := parseDateQuery(c, "to")
	if err != nil {
		return
	}
	events, err := h.Svc.ListEvents(c.Request.Context(), userID, c.Query("type"), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, events)
}

// Snapshot returns the latest canonical value per metric.
func (h *HealthDataController) Snapshot(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	respondOK(c, http.StatusOK, h.Svc.Snapshot(c.Request.Context(), userID))
}

// RunDedup re-resolves canonical flags on demand.
func (h *HealthDataController) RunDedup(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var body struct {
		SourceApp   string   `json:"source_app"`
		MetricTypes []string `json:"metric_types"`
	}
	// empty body means full pass
	_ = c.ShouldBindJSON(&body)

	res, err := h.Dedup.RunDeduplicationCheck(c.Request.Context(), userID, body.SourceApp, body.MetricTypes)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, res)
}

// parseDateQuery reads an optional YYYY-MM-DD query param; writes the error
// response itself when the value is malformed.
func parseDateQuery(c *gin.Context, name string) (time.Time, error) {
	v := c.Query(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid " + name + " date, expected YYYY-MM-DD"})
		return time.Time{}, err
	}
	return t, nil
}
