package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/poseshaemost/internal/app"
	"github.com/shrimpsizemoose/poseshaemost/internal/attendance"
	"github.com/shrimpsizemoose/poseshaemost/internal/metrics"
	"github.com/shrimpsizemoose/poseshaemost/internal/models"
	"github.com/shrimpsizemoose/poseshaemost/internal/stats"
	"github.com/shrimpsizemoose/poseshaemost/internal/store"
)

// today is the school date of the request. With server.debug on, the
// test_date query parameter overrides it.
func (h *Handler) today(r *http.Request) time.Time {
	if h.service.Config.Server.Debug {
		if raw := r.URL.Query().Get("test_date"); raw != "" {
			if day, err := time.Parse(time.DateOnly, raw); err == nil {
				return day
			}
		}
	}
	return h.service.Calendar.Today()
}

type classDay struct {
	Class             models.ClassRoom          `json:"class"`
	Summary           *models.AttendanceSummary `json:"summary,omitempty"`
	EditDeadline      *time.Time                `json:"edit_deadline,omitempty"`
	CanEdit           bool                      `json:"can_edit"`
	AbsentIDs         map[models.Reason][]int64 `json:"absent_ids,omitempty"`
	AllAbsentIDs      []int64                   `json:"all_absent_ids,omitempty"`
	PrivilegedPresent []models.Student          `json:"privileged_present"`
}

type todayResponse struct {
	Date          string       `json:"date"`
	IsSchoolDay   bool         `json:"is_school_day"`
	EditWindow    string       `json:"edit_window"`
	EditClassID   int64        `json:"edit_class,omitempty"`
	Notice        string       `json:"notice,omitempty"`
	TotalStudents int          `json:"total_students"`
	Totals        stats.Totals `json:"totals_saved"`
	Classes       []classDay   `json:"classes"`
}

func (h *Handler) HandleToday(w http.ResponseWriter, r *http.Request, access *app.Access) {
	ctx := r.Context()
	day := h.today(r)
	classIDs := access.ClassIDs()

	summaries, err := h.service.Store.ListSummaries(ctx, store.SingleDay(day), classIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	summaryIDs := make([]int64, len(summaries))
	byClass := make(map[int64]*models.AttendanceSummary, len(summaries))
	for i := range summaries {
		summaryIDs[i] = summaries[i].ID
		byClass[summaries[i].ClassRoomID] = &summaries[i]
	}

	absents, err := h.service.Store.ListAbsentStudents(ctx, summaryIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	absentBySummary := make(map[int64][]models.AbsentStudent)
	absentToday := make(map[int64]bool, len(absents))
	for _, a := range absents {
		absentBySummary[a.AttendanceID] = append(absentBySummary[a.AttendanceID], a)
		absentToday[a.StudentID] = true
	}

	privileged, err := h.service.Store.ListPrivilegedStudents(ctx, classIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	privilegedByClass := make(map[int64][]models.Student)
	for _, s := range privileged {
		if !absentToday[s.ID] {
			privilegedByClass[s.ClassRoomID] = append(privilegedByClass[s.ClassRoomID], s)
		}
	}

	now := time.Now()
	window := h.service.Engine.EditWindow()
	resp := todayResponse{
		Date:        day.Format(time.DateOnly),
		IsSchoolDay: h.service.Calendar.IsSchoolDay(day),
		EditWindow:  window.String(),
		Classes:     make([]classDay, 0, len(access.Classes)),
	}

	for _, class := range access.Classes {
		cd := classDay{Class: class, PrivilegedPresent: privilegedByClass[class.ID]}
		if cd.PrivilegedPresent == nil {
			cd.PrivilegedPresent = []models.Student{}
		}
		resp.TotalStudents += class.StudentCount

		if s, ok := byClass[class.ID]; ok {
			deadline := s.EditDeadline(window)
			cd.Summary = s
			cd.EditDeadline = &deadline
			cd.CanEdit = s.Editable(now, window)
			cd.AbsentIDs = make(map[models.Reason][]int64)
			for _, a := range absentBySummary[s.ID] {
				cd.AbsentIDs[a.Reason] = append(cd.AbsentIDs[a.Reason], a.StudentID)
				cd.AllAbsentIDs = append(cd.AllAbsentIDs, a.StudentID)
			}
			resp.Totals.Add(s)
		}
		resp.Classes = append(resp.Classes, cd)
	}

	if raw := r.URL.Query().Get("edit_class"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			if s, ok := byClass[id]; ok {
				if s.Editable(now, window) {
					resp.EditClassID = id
				} else {
					resp.Notice = fmt.Sprintf("the %s edit window is already closed", window)
				}
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

type submitResponse struct {
	Saved []attendance.Saved `json:"saved"`
	Error string             `json:"error,omitempty"`
	Code  string             `json:"code,omitempty"`
	Class string             `json:"class,omitempty"`
}

func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request, access *app.Access) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	sub := attendance.ParseForm(r.PostForm)
	saved, err := h.service.Engine.Submit(r.Context(), h.today(r), sub, access.Actor())
	recordSubmission(saved, err)

	resp := submitResponse{Saved: saved}
	if resp.Saved == nil {
		resp.Saved = []attendance.Saved{}
	}
	if err != nil {
		status, errResp := errorStatus(err)
		if status == http.StatusInternalServerError {
			logger.Error.Printf("[%s] attendance submit failed: %v", requestID(r.Context()), err)
		}
		resp.Error, resp.Code, resp.Class = errResp.Error, errResp.Code, errResp.Class
		writeJSON(w, status, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func recordSubmission(saved []attendance.Saved, err error) {
	for _, s := range saved {
		outcome := "updated"
		if s.Created {
			outcome = "created"
		}
		metrics.SubmissionsTotal.WithLabelValues(outcome).Inc()
		metrics.AbsentStudents.WithLabelValues(string(models.ReasonUnexcused)).Observe(float64(s.Summary.UnexcusedAbsentCount))
		metrics.AbsentStudents.WithLabelValues(string(models.ReasonORVI)).Observe(float64(s.Summary.ORVICount))
		metrics.AbsentStudents.WithLabelValues(string(models.ReasonOtherDisease)).Observe(float64(s.Summary.OtherDiseaseCount))
		metrics.AbsentStudents.WithLabelValues(string(models.ReasonFamily)).Observe(float64(s.Summary.FamilyReasonCount))
	}
	if err == nil {
		return
	}

	var (
		validation *attendance.ValidationError
		state      *attendance.StateError
		notFound   *attendance.NotFoundError
	)
	switch {
	case errors.As(err, &validation):
		metrics.SubmissionsTotal.WithLabelValues("invalid").Inc()
		metrics.ValidationFailuresTotal.WithLabelValues(validation.Rule).Inc()
	case errors.As(err, &state):
		metrics.SubmissionsTotal.WithLabelValues(string(state.Kind)).Inc()
	case errors.As(err, &notFound):
		metrics.SubmissionsTotal.WithLabelValues("not_found").Inc()
	case errors.Is(err, attendance.ErrClassNotPermitted):
		metrics.SubmissionsTotal.WithLabelValues("forbidden").Inc()
	default:
		metrics.SubmissionsTotal.WithLabelValues("error").Inc()
	}
}
