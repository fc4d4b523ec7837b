package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shrimpsizemoose/poseshaemost/internal/app"
	"github.com/shrimpsizemoose/poseshaemost/internal/export"
	"github.com/shrimpsizemoose/poseshaemost/internal/metrics"
	"github.com/shrimpsizemoose/poseshaemost/internal/stats"
)

func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request, access *app.Access) {
	q := r.URL.Query()
	year, month := stats.Period(q.Get("month"), q.Get("year"), h.service.Calendar.Today())

	report, err := h.service.Stats.MonthlyReport(r.Context(), year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	wordContentType = "application/msword; charset=utf-8"
)

func (h *Handler) HandleExportDaily(w http.ResponseWriter, r *http.Request, access *app.Access) {
	q := r.URL.Query()
	day, err := time.Parse(time.DateOnly, strings.TrimSpace(q.Get("date")))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid date, expected YYYY-MM-DD", Code: "bad_request"})
		return
	}
	format := strings.ToLower(strings.TrimSpace(q.Get("format")))
	if format != "excel" && format != "word" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "format must be excel or word", Code: "bad_request"})
		return
	}

	rows, err := export.BuildDailyRows(r.Context(), h.service.Store, day)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var (
		buf         bytes.Buffer
		contentType string
		name        string
	)
	if format == "excel" {
		err = export.WriteXLSX(&buf, day, rows)
		contentType, name = xlsxContentType, export.FileName(day, "xlsx")
	} else {
		err = export.WriteWord(&buf, day, rows)
		contentType, name = wordContentType, export.FileName(day, "doc")
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	metrics.ExportsTotal.WithLabelValues(format).Inc()
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
