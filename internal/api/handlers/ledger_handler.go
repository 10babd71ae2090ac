package handlers

import (
	"net/http"
	"strconv"

	"github.com/andresuchdata/warenbestand/internal/domain"
	"github.com/andresuchdata/warenbestand/internal/service"
	"github.com/gin-gonic/gin"
)

type LedgerHandler struct {
	service *service.ReconcileService
}

func NewLedgerHandler(service *service.ReconcileService) *LedgerHandler {
	return &LedgerHandler{service: service}
}

type saveLedgerRequest struct {
	Records []domain.LedgerRecord `json:"records"`
}

// GetLedger returns all ledger records ordered by SKU
func (h *LedgerHandler) GetLedger(c *gin.Context) {
	records, err := h.service.Ledger(c.Request.Context())
	if err != nil {
		respondError(c, statusFor(err), "failed to fetch ledger", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

// SaveLedger applies confirmed edits. Per-SKU failures are part of a 200 response.
func (h *LedgerHandler) SaveLedger(c *gin.Context) {
	var req saveLedgerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	res, err := h.service.SaveLedger(c.Request.Context(), req.Records)
	if err != nil {
		respondError(c, statusFor(err), "failed to save ledger", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetRun returns a single reconcile run by id
func (h *LedgerHandler) GetRun(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, http.StatusBadRequest, "run id must be a positive integer", nil)
		return
	}

	run, err := h.service.Run(c.Request.Context(), id)
	if err != nil {
		respondError(c, statusFor(err), "failed to fetch run", err)
		return
	}
	c.JSON(http.StatusOK, run)
}

// GetRuns returns the most recent reconcile runs
func (h *LedgerHandler) GetRuns(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		respondError(c, http.StatusBadRequest, "limit must be a positive integer", nil)
		return
	}

	runs, err := h.service.RecentRuns(c.Request.Context(), limit)
	if err != nil {
		respondError(c, statusFor(err), "failed to fetch runs", err)
		return
	}
	if runs == nil {
		runs = []*domain.ReconcileRun{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}
