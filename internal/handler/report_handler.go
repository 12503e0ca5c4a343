package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-face-api/internal/service"
	appErrors "github.com/noah-isme/sma-face-api/pkg/errors"
	"github.com/noah-isme/sma-face-api/pkg/export"
	"github.com/noah-isme/sma-face-api/pkg/response"
)

// ReportHandler exposes attendance reports and file exports.
type ReportHandler struct {
	attendance *service.AttendanceService
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(attendance *service.AttendanceService, csv *export.CSVExporter, pdf *export.PDFExporter) *ReportHandler {
	return &ReportHandler{attendance: attendance, csv: csv, pdf: pdf}
}

// AttendanceReport godoc
// @Summary Subject attendance report
// @Tags Reports
// @Produce json
// @Param id path string true "Subject ID"
// @Param from query string true "Date from (YYYY-MM-DD)"
// @Param to query string true "Date to (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /reports/subjects/{id} [get]
func (h *ReportHandler) AttendanceReport(c *gin.Context) {
	from, to, err := parseRange(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	rows, err := h.attendance.Report(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// Export godoc
// @Summary Export subject attendance report
// @Description Downloads the report as CSV or PDF.
// @Tags Reports
// @Produce octet-stream
// @Param id path string true "Subject ID"
// @Param from query string true "Date from (YYYY-MM-DD)"
// @Param to query string true "Date to (YYYY-MM-DD)"
// @Param format query string false "Export format (csv or pdf, default csv)"
// @Success 200 {file} file
// @Router /reports/subjects/{id}/export [get]
func (h *ReportHandler) Export(c *gin.Context) {
	from, to, err := parseRange(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	rows, err := h.attendance.Report(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}

	dataset := service.ReportDataset(rows)
	filename := fmt.Sprintf("attendance_%s_%s_%s", c.Param("id"), from.Format("20060102"), to.Format("20060102"))

	switch c.DefaultQuery("format", "csv") {
	case "csv":
		data, err := h.csv.Render(dataset)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv"))
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", filename))
		c.Data(http.StatusOK, "text/csv", data)
	case "pdf":
		data, err := h.pdf.Render(dataset, "Attendance Report")
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf"))
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.pdf", filename))
		c.Data(http.StatusOK, "application/pdf", data)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unsupported export format"))
	}
}

func parseRange(c *gin.Context) (time.Time, time.Time, error) {
	from, err := time.Parse("2006-01-02", c.Query("from"))
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid from date")
	}
	to, err := time.Parse("2006-01-02", c.Query("to"))
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid to date")
	}
	return from, to, nil
}
