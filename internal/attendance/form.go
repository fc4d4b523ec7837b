package attendance

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// ReasonInput is one reason column of a class row exactly as typed.
type ReasonInput struct {
	Count string `json:"count"`
	List  string `json:"students"`
}

// ClassInput is one class row of a submission before any validation.
type ClassInput struct {
	ClassID         int64       `json:"class_id"`
	ReportedPresent string      `json:"reported_present"`
	Unexcused       ReasonInput `json:"unexcused"`
	ORVI            ReasonInput `json:"orvi"`
	OtherDisease    ReasonInput `json:"other_disease"`
	Family          ReasonInput `json:"family"`
	AllAbsent       string      `json:"all_absent_students"`
}

// Blank reports whether nothing at all was typed for the row.
func (c *ClassInput) Blank() bool {
	for _, v := range []string{
		c.ReportedPresent,
		c.Unexcused.Count, c.Unexcused.List,
		c.ORVI.Count, c.ORVI.List,
		c.OtherDisease.Count, c.OtherDisease.List,
		c.Family.Count, c.Family.List,
		c.AllAbsent,
	} {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

type Submission struct {
	Rows []ClassInput `json:"rows"`
	// EditClassID restricts processing to a single class; zero means all rows.
	EditClassID int64 `json:"edit_class,omitempty"`
}

// ParseForm reads the multi-class attendance form. Rows whose class field is
// missing or not a number are dropped; everything else is kept verbatim for
// the validation step.
func ParseForm(form url.Values) Submission {
	var sub Submission

	rowCount := parseInt(form.Get("row_count"))
	if id, ok := parseID(form.Get("edit_class")); ok {
		sub.EditClassID = id
	}

	for i := 0; i < rowCount; i++ {
		classID, ok := parseID(form.Get(fmt.Sprintf("class_%d", i)))
		if !ok {
			continue
		}
		row := func(prefix string) string {
			return strings.TrimSpace(form.Get(fmt.Sprintf("%s_%d", prefix, i)))
		}
		list := func(prefix string) string {
			return strings.TrimSpace(form.Get(fmt.Sprintf("%s_%d", prefix, classID)))
		}
		sub.Rows = append(sub.Rows, ClassInput{
			ClassID:         classID,
			ReportedPresent: row("reported_present"),
			Unexcused:       ReasonInput{Count: row("unexcused_absent"), List: list("absent_students")},
			ORVI:            ReasonInput{Count: row("orvi"), List: list("orvi_students")},
			OtherDisease:    ReasonInput{Count: row("other_disease"), List: list("other_students")},
			Family:          ReasonInput{Count: row("family"), List: list("family_students")},
			AllAbsent:       list("all_absent_students"),
		})
	}
	return sub
}

// parseInt reads a free-text number; blank or garbage counts as zero.
func parseInt(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return n
}

func parseID(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

type idSet map[int64]struct{}

// parseIDs splits a comma separated list, skipping parts that are not integers.
func parseIDs(raw string) idSet {
	set := idSet{}
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			continue
		}
		set[id] = struct{}{}
	}
	return set
}

func (s idSet) has(id int64) bool {
	_, ok := s[id]
	return ok
}

func (s idSet) intersect(o idSet) []int64 {
	var out []int64
	for id := range s {
		if o.has(id) {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s idSet) covers(o idSet) bool {
	for id := range o {
		if !s.has(id) {
			return false
		}
	}
	return true
}

func (s idSet) sorted() []int64 {
	out := make([]int64, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func union(sets ...idSet) idSet {
	out := idSet{}
	for _, s := range sets {
		for id := range s {
			out[id] = struct{}{}
		}
	}
	return out
}
