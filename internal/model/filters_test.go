package model

import (
	"errors"
	"testing"
	"time"
)

func TestParseFilters_KnownKeys(t *testing.T) {
	f, err := ParseFilters(map[string]string{
		"department":       "Valle del Cauca",
		"city":             " Cali ",
		"salary_min":       "2000000",
		"salary_max":       "5000000.5",
		"level":            "Profesional",
		"include_inactive": "true",
	})
	if err != nil {
		t.Fatalf("ParseFilters: %v", err)
	}
	if f.Department != "Valle del Cauca" || f.City != "Cali" || f.Level != "Profesional" {
		t.Errorf("unexpected strings: %+v", f)
	}
	if f.SalaryMin == nil || *f.SalaryMin != 2000000 {
		t.Errorf("SalaryMin = %v", f.SalaryMin)
	}
	if f.SalaryMax == nil || *f.SalaryMax != 5000000.5 {
		t.Errorf("SalaryMax = %v", f.SalaryMax)
	}
	if !f.IncludeInactive {
		t.Error("expected IncludeInactive")
	}
}

func TestParseFilters_UnknownKeysIgnored(t *testing.T) {
	f, err := ParseFilters(map[string]string{"role": "engineer", "department": ""})
	if err != nil {
		t.Fatalf("ParseFilters: %v", err)
	}
	if !f.IsEmpty() {
		t.Errorf("expected empty filters, got %+v", f)
	}
}

func TestParseFilters_BadNumber(t *testing.T) {
	if _, err := ParseFilters(map[string]string{"salary_min": "two million"}); err == nil {
		t.Fatal("expected error for non-numeric salary_min")
	}
}

func TestRunLogFinalize(t *testing.T) {
	start := time.Date(2026, 10, 1, 6, 0, 0, 0, time.UTC)
	l := RunLog{StartedAt: start}

	l.Finalize(start.Add(90*time.Second), errors.New("boom"))
	if l.Success {
		t.Error("expected failure")
	}
	if l.ErrorMessage != "boom" || l.ElapsedSeconds != 90 {
		t.Errorf("unexpected log: %+v", l)
	}

	// second call must not overwrite
	l.Finalize(start.Add(time.Hour), nil)
	if l.Success || l.ElapsedSeconds != 90 {
		t.Errorf("Finalize mutated a finalized log: %+v", l)
	}
}
