package handlers

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/andresuchdata/warenbestand/internal/ingest"
	"github.com/andresuchdata/warenbestand/internal/pipeline/coverage"
	"github.com/andresuchdata/warenbestand/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const maxUploadBytes = 32 << 20

type ReconcileHandler struct {
	service *service.ReconcileService
}

func NewReconcileHandler(service *service.ReconcileService) *ReconcileHandler {
	return &ReconcileHandler{service: service}
}

// Reconcile runs the pipeline over an uploaded export and returns the projection as JSON
func (h *ReconcileHandler) Reconcile(c *gin.Context) {
	name, res, ok := h.run(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"file":   name,
		"result": res,
	})
}

// Export runs the pipeline and returns the projection as an XLSX workbook, or CSV with format=csv
func (h *ReconcileHandler) Export(c *gin.Context) {
	name, res, ok := h.run(c)
	if !ok {
		return
	}

	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)) + "_coverage"
	var (
		buf         bytes.Buffer
		filename    string
		contentType string
		err         error
	)
	switch strings.ToLower(c.DefaultQuery("format", "xlsx")) {
	case "csv":
		filename, contentType = base+".csv", "text/csv; charset=utf-8"
		err = ingest.WriteCSV(&buf, res.Rows)
	case "xlsx":
		filename, contentType = base+".xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		err = ingest.WriteXLSX(&buf, res)
	default:
		respondError(c, http.StatusBadRequest, "format must be xlsx or csv", nil)
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to write export", err)
		return
	}

	if key, err := h.service.ArchiveExport(c.Request.Context(), filename, buf.Bytes()); err != nil {
		log.Warn().Err(err).Str("file", filename).Msg("failed to archive export")
	} else if key != "" {
		c.Header("X-Archive-Key", key)
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

func (h *ReconcileHandler) run(c *gin.Context) (string, *coverage.Result, bool) {
	opts, err := parseRunOptions(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid query parameters", err)
		return "", nil, false
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "multipart field 'file' is required", err)
		return "", nil, false
	}
	if fileHeader.Size > maxUploadBytes {
		respondError(c, http.StatusRequestEntityTooLarge, "file too large", nil)
		return "", nil, false
	}

	f, err := fileHeader.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "cannot open uploaded file", err)
		return "", nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		respondError(c, http.StatusBadRequest, "cannot read uploaded file", err)
		return "", nil, false
	}

	res, err := h.service.ReconcileUpload(c.Request.Context(), fileHeader.Filename, data, opts)
	if err != nil {
		respondError(c, statusFor(err), "reconcile failed", err)
		return "", nil, false
	}
	return fileHeader.Filename, res, true
}

func parseRunOptions(c *gin.Context) (service.RunOptions, error) {
	opts := service.RunOptions{
		Mode: strings.TrimSpace(c.Query("mode")),
		AsOf: strings.TrimSpace(c.Query("as_of")),
	}
	if raw := strings.TrimSpace(c.Query("skip_rows")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return opts, fmt.Errorf("skip_rows must be a non-negative integer, got %q", raw)
		}
		opts.SkipRows = &n
	}
	if raw := strings.TrimSpace(c.Query("refresh_mapping")); raw != "" {
		refresh, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, fmt.Errorf("refresh_mapping must be a boolean, got %q", raw)
		}
		opts.RefreshMapping = refresh
	}
	if opts.AsOf != "" {
		if _, err := time.Parse("2006-01-02", opts.AsOf); err != nil {
			return opts, fmt.Errorf("as_of must be yyyy-mm-dd, got %q", opts.AsOf)
		}
	}
	return opts, nil
}
