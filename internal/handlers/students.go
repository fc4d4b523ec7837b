package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/poseshaemost/internal/app"
	"github.com/shrimpsizemoose/poseshaemost/internal/metrics"
	"github.com/shrimpsizemoose/poseshaemost/internal/models"
	"github.com/shrimpsizemoose/poseshaemost/internal/store"
)

type studentsResponse struct {
	Students []models.Student   `json:"students"`
	Classes  []models.ClassRoom `json:"classes"`
	Sort     string             `json:"sort"`
}

// rosterClasses are the classes the caller may browse and change.
func (h *Handler) rosterClasses(ctx context.Context, access *app.Access) ([]models.ClassRoom, error) {
	if access.RosterClassIDs == nil {
		return h.service.Store.ListClassRooms(ctx)
	}
	return access.Classes, nil
}

func (h *Handler) HandleListStudents(w http.ResponseWriter, r *http.Request, access *app.Access) {
	q := r.URL.Query()

	filter := store.StudentFilter{
		ClassIDs:     access.RosterClassIDs,
		Query:        strings.TrimSpace(q.Get("q")),
		ShowInactive: strings.TrimSpace(q.Get("show_inactive")) == "1",
		Sort:         strings.TrimSpace(q.Get("sort")),
	}
	if !models.ValidStudentSort(filter.Sort) {
		filter.Sort = models.StudentSortClassAsc
	}
	if id, err := strconv.ParseInt(strings.TrimSpace(q.Get("class_id")), 10, 64); err == nil && id > 0 {
		filter.ClassID = id
	}

	students, err := h.service.Store.ListStudents(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	classes, err := h.rosterClasses(r.Context(), access)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, studentsResponse{Students: students, Classes: classes, Sort: filter.Sort})
}

var privilegeActions = map[string]models.PrivilegeType{
	"priv_svo":        models.PrivilegeSVO,
	"priv_multi":      models.PrivilegeMulti,
	"priv_low_income": models.PrivilegeLowIncome,
	"priv_disabled":   models.PrivilegeDisabled,
}

func (h *Handler) HandleStudentAction(w http.ResponseWriter, r *http.Request, access *app.Access) {
	var req models.StudentActionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	allowed := access.RosterClassIDs
	st := h.service.Store

	var (
		updated int
		err     error
	)
	switch req.Action {
	case "deactivate":
		updated, err = st.SetStudentsActive(ctx, req.StudentIDs, allowed, false)
	case "restore":
		updated, err = st.SetStudentsActive(ctx, req.StudentIDs, allowed, true)
	case "priv_on":
		updated, err = st.SetStudentsPrivileged(ctx, req.StudentIDs, allowed, true)
	case "priv_off":
		updated, err = st.SetStudentsPrivileged(ctx, req.StudentIDs, allowed, false)
	case "move":
		updated, err = st.MoveStudents(ctx, req.StudentIDs, allowed, req.TargetClassID)
	case "set_privilege_types":
		codes := make([]models.PrivilegeType, len(req.PrivilegeTypes))
		for i, c := range req.PrivilegeTypes {
			codes[i] = models.PrivilegeType(c)
		}
		for _, id := range req.StudentIDs {
			var n int
			n, err = st.SetStudentPrivileges(ctx, id, allowed, codes)
			if err != nil {
				break
			}
			updated += n
		}
	default:
		updated, err = st.AddStudentsPrivilege(ctx, req.StudentIDs, allowed, privilegeActions[req.Action])
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	metrics.StudentActionsTotal.WithLabelValues(req.Action).Add(float64(updated))
	logger.Info.Printf("[%s] %s applied %s to %d students", requestID(ctx), access.User.Username, req.Action, updated)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"action":  req.Action,
		"updated": updated,
	})
}
