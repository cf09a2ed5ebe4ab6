package filter

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/amishk599/simoradar/internal/model"
)

// Ensure Predicate implements model.RecordFilter.
var _ model.RecordFilter = (*Predicate)(nil)

// Predicate matches JobRecords against a caller's filter set. It is pure: the
// only input besides its arguments is the clock used for the active check.
type Predicate struct {
	// ExactLevel switches the level filter from substring to whole-value
	// match. The resource pipeline uses it because its levels are an enum.
	ExactLevel bool
	now        func() time.Time
}

// NewPredicate returns a predicate using the wall clock.
func NewPredicate(exactLevel bool) *Predicate {
	return &Predicate{ExactLevel: exactLevel, now: time.Now}
}

// WithClock returns a copy of p that reads the time from now.
func (p *Predicate) WithClock(now func() time.Time) *Predicate {
	cp := *p
	cp.now = now
	return &cp
}

// Match returns true if rec is an active listing (unless the filters ask for
// inactive ones too) and satisfies every criterion present in f.
// Absent criteria never exclude; a present string criterion excludes records
// whose field is empty.
func (p *Predicate) Match(rec model.JobRecord, f model.Filters) bool {
	if !f.IncludeInactive && !Active(rec, p.clock()) {
		return false
	}

	if !containsFold(rec.Department, f.Department) {
		return false
	}
	if !containsFold(rec.Municipality, f.City) {
		return false
	}
	if !containsFold(rec.ProcessType, f.ContestType) {
		return false
	}
	if !containsFold(rec.EntityName, f.Entity) {
		return false
	}
	if !containsFold(rec.ExternalID, f.ExternalID) {
		return false
	}

	if f.Level != "" {
		if p.ExactLevel {
			if fold(rec.Level) != fold(f.Level) {
				return false
			}
		} else if !containsFold(rec.Level, f.Level) {
			return false
		}
	}

	if f.SalaryMin != nil && (rec.SalaryAmount == nil || *rec.SalaryAmount < *f.SalaryMin) {
		return false
	}
	if f.SalaryMax != nil && (rec.SalaryAmount == nil || *rec.SalaryAmount > *f.SalaryMax) {
		return false
	}

	if f.Disability != "" {
		want, ok := parseFlag(f.Disability)
		if !ok || rec.DisabilityReserved != want {
			return false
		}
	}

	return true
}

func (p *Predicate) clock() time.Time {
	if p.now == nil {
		return time.Now()
	}
	return p.now()
}

// containsFold reports whether needle is empty or a case-insensitive substring
// of field.
func containsFold(field, needle string) bool {
	if needle == "" {
		return true
	}
	if field == "" {
		return false
	}
	return strings.Contains(fold(field), fold(needle))
}

// fold normalizes s to NFC and applies Unicode case folding, so "BOGOTÁ" and a
// decomposed "bogotá" compare equal.
func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}

func parseFlag(v string) (bool, bool) {
	switch fold(v) {
	case "si", "sí", "s", "true", "yes", "1":
		return true, true
	case "no", "n", "false", "0":
		return false, true
	}
	return false, false
}
