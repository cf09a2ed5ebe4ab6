package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Filters is the sparse set of caller criteria. Zero values mean "not set".
type Filters struct {
	Department  string
	City        string
	SalaryMin   *float64
	SalaryMax   *float64
	ContestType string
	Disability  string
	Entity      string
	Level       string
	ExternalID  string

	// IncludeInactive returns closed listings too.
	IncludeInactive bool
}

// IsEmpty reports whether no user criterion is set.
func (f Filters) IsEmpty() bool {
	return f.Department == "" && f.City == "" && f.SalaryMin == nil && f.SalaryMax == nil &&
		f.ContestType == "" && f.Disability == "" && f.Entity == "" && f.Level == "" &&
		f.ExternalID == "" && !f.IncludeInactive
}

// ParseFilters builds Filters from the inbound key/value mapping.
// Unknown keys are ignored; blank values count as absent.
func ParseFilters(in map[string]string) (Filters, error) {
	var f Filters
	for key, raw := range in {
		v := strings.TrimSpace(raw)
		if v == "" {
			continue
		}
		switch key {
		case "department":
			f.Department = v
		case "city":
			f.City = v
		case "contest_type":
			f.ContestType = v
		case "disability":
			f.Disability = v
		case "entity":
			f.Entity = v
		case "level":
			f.Level = v
		case "external_id":
			f.ExternalID = v
		case "salary_min", "salary_max":
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return Filters{}, fmt.Errorf("parse filter %s %q: %w", key, v, err)
			}
			if key == "salary_min" {
				f.SalaryMin = &n
			} else {
				f.SalaryMax = &n
			}
		case "include_inactive":
			b, err := strconv.ParseBool(v)
			if err != nil {
				return Filters{}, fmt.Errorf("parse filter %s %q: %w", key, v, err)
			}
			f.IncludeInactive = b
		}
	}
	return f, nil
}
