package attendance

import (
	"fmt"
	"strings"

	"github.com/shrimpsizemoose/poseshaemost/internal/models"
)

// Reconciled is a validated class row ready to be stored.
type Reconciled struct {
	ClassID              int64
	PresentCountAuto     int
	PresentCountReported int
	UnexcusedAbsentCount int
	ORVICount            int
	OtherDiseaseCount    int
	FamilyReasonCount    int
	// Absences holds one entry per absent student, ordered by student id.
	Absences []models.AbsentStudent
}

func (r *Reconciled) TotalAbsent() int {
	return r.UnexcusedAbsentCount + r.ORVICount + r.OtherDiseaseCount + r.FamilyReasonCount
}

type reasonBucket struct {
	reason models.Reason
	label  string
	input  ReasonInput
	ids    idSet
}

// Reconcile validates one class row against the active roster size and
// derives the counts to store. A blank row yields nil and no error.
func Reconcile(in ClassInput, className string, rosterSize int) (*Reconciled, error) {
	if in.Blank() {
		return nil, nil
	}

	buckets := []*reasonBucket{
		{reason: models.ReasonUnexcused, label: "unexcused", input: in.Unexcused},
		{reason: models.ReasonORVI, label: "ORVI", input: in.ORVI},
		{reason: models.ReasonOtherDisease, label: "other disease", input: in.OtherDisease},
		{reason: models.ReasonFamily, label: "family", input: in.Family},
	}
	for _, b := range buckets {
		b.ids = parseIDs(b.input.List)
	}

	for i := 0; i < len(buckets); i++ {
		for j := i + 1; j < len(buckets); j++ {
			common := buckets[i].ids.intersect(buckets[j].ids)
			if len(common) == 0 {
				continue
			}
			if len(common) > 3 {
				common = common[:3]
			}
			return nil, &ValidationError{
				Class: className,
				Rule:  RuleOverlap,
				Message: fmt.Sprintf("a student cannot be listed under two reasons (%s + %s), e.g. ids %v",
					buckets[i].label, buckets[j].label, common),
			}
		}
	}

	for _, b := range buckets {
		if strings.TrimSpace(b.input.Count) == "" {
			continue
		}
		if parseInt(b.input.Count) != len(b.ids) {
			return nil, &ValidationError{
				Class:   className,
				Rule:    RuleCountMismatch,
				Message: fmt.Sprintf("%s count does not match the student list", b.label),
			}
		}
	}

	allAbsent := parseIDs(in.AllAbsent)
	reasons := union(buckets[0].ids, buckets[1].ids, buckets[2].ids, buckets[3].ids)
	switch {
	case len(reasons) > 0 && len(allAbsent) == 0:
		allAbsent = reasons
	case len(reasons) > 0 && !allAbsent.covers(reasons):
		return nil, &ValidationError{
			Class:   className,
			Rule:    RuleSuperset,
			Message: "the list of all absent students must include every reason list",
		}
	case len(reasons) == 0 && len(allAbsent) > 0:
		buckets[0].ids = allAbsent
	}

	out := &Reconciled{
		UnexcusedAbsentCount: len(buckets[0].ids),
		ORVICount:            len(buckets[1].ids),
		OtherDiseaseCount:    len(buckets[2].ids),
		FamilyReasonCount:    len(buckets[3].ids),
		ClassID:              in.ClassID,
		PresentCountAuto:     rosterSize,
	}

	total := out.TotalAbsent()
	if total > rosterSize {
		return nil, &ValidationError{
			Class:   className,
			Rule:    RuleCapacity,
			Message: fmt.Sprintf("%d absent students but only %d on the roster", total, rosterSize),
		}
	}

	if rosterSize > 0 {
		out.PresentCountReported = max(0, rosterSize-total)
	} else {
		out.PresentCountReported = max(0, parseInt(in.ReportedPresent))
	}

	// every id in allAbsent that matches a reason list; the rest is dropped
	for _, id := range allAbsent.sorted() {
		for _, b := range buckets {
			if b.ids.has(id) {
				out.Absences = append(out.Absences, models.AbsentStudent{StudentID: id, Reason: b.reason})
				break
			}
		}
	}

	return out, nil
}
