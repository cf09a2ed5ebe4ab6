package extract

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/amishk599/simoradar/internal/model"
)

var fixedNow = time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC)

func newTestExtractor() *Extractor {
	return New().WithClock(func() time.Time { return fixedNow })
}

const rowText = `Número OPEC: 183214
CONVOCATORIA Territorial 2024 Alcaldía de Santiago de Cali - Abierto
Denominación: PROFESIONAL UNIVERSITARIO
Nivel: Profesional
Grado: 11
Código: 219
Asignación salarial: $ 4.500.000
Cierre de inscripciones: 15/11/2026 23:59
Total de vacantes del empleo: 3
Requisitos Estudio: Título profesional en Ingeniería de Sistemas
Experiencia: Doce (12) meses de experiencia profesional relacionada
Dependencia: Secretaría de Salud, Subsecretaría de Vigilancia
Departamento: Valle del Cauca
Municipio: Cali
Vacantes reservados para personas con discapacidad: 1`

func TestExtract_TextRow(t *testing.T) {
	rec, err := newTestExtractor().Extract(model.RawRecord{Kind: model.RawText, Text: rowText, SourceID: "dgrid_0-row-77"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	checks := []struct{ field, got, want string }{
		{"ExternalID", rec.ExternalID, "183214"},
		{"Title", rec.Title, "PROFESIONAL UNIVERSITARIO"},
		{"Level", rec.Level, "Profesional"},
		{"Grade", rec.Grade, "11"},
		{"Code", rec.Code, "219"},
		{"ProcessName", rec.ProcessName, "Territorial 2024 Alcaldía de Santiago de Cali"},
		{"ProcessType", rec.ProcessType, "Abierto"},
		{"EntityName", rec.EntityName, "Alcaldía de Santiago de Cali"},
		{"ClosingDate", rec.ClosingDate, "15/11/2026 23:59"},
		{"StudyRequirement", rec.StudyRequirement, "Título profesional en Ingeniería de Sistemas"},
		{"Dependency", rec.Dependency, "Secretaría de Salud"},
		{"Department", rec.Department, "Valle del Cauca"},
		{"Municipality", rec.Municipality, "Cali"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.field, c.got, c.want)
		}
	}
	if rec.SalaryAmount == nil || *rec.SalaryAmount != 4500000 {
		t.Errorf("SalaryAmount = %v, want 4500000", rec.SalaryAmount)
	}
	if rec.ProcessYear != 2024 {
		t.Errorf("ProcessYear = %d, want 2024", rec.ProcessYear)
	}
	if rec.VacancyCount != 3 || rec.VacancyAvailable != 3 {
		t.Errorf("vacancies = %d/%d, want 3/3", rec.VacancyCount, rec.VacancyAvailable)
	}
	if !rec.DisabilityReserved {
		t.Error("expected DisabilityReserved")
	}
	if rec.PromotionContest {
		t.Error("expected open contest")
	}
	if !rec.AcquiredAt.Equal(fixedNow) {
		t.Errorf("AcquiredAt = %v", rec.AcquiredAt)
	}
}

func TestExtract_TitleTokenOnly(t *testing.T) {
	rec, err := newTestExtractor().Extract(model.RawRecord{Kind: model.RawText, Text: "PROFESIONAL UNIVERSITARIO", SourceID: "dgrid_0-row-5"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Title != "PROFESIONAL UNIVERSITARIO" {
		t.Errorf("Title = %q", rec.Title)
	}
	if rec.Department != "" || rec.Municipality != "" || rec.SalaryAmount != nil || rec.ClosingDate != "" {
		t.Errorf("expected all other fields absent, got %+v", rec)
	}
	if rec.ExternalID != "5" {
		t.Errorf("ExternalID = %q, want row id digits", rec.ExternalID)
	}
}

func TestExtract_TitleVocabularyEarliestWins(t *testing.T) {
	text := "Empleo de tecnico operativo de apoyo al CONDUCTOR"
	rec, err := newTestExtractor().Extract(model.RawRecord{Kind: model.RawText, Text: text})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Title != "TÉCNICO OPERATIVO" {
		t.Errorf("Title = %q, want TÉCNICO OPERATIVO", rec.Title)
	}
	if rec.ExternalID == "" {
		t.Error("expected content-derived external id")
	}
}

func TestExtract_LabelsStartTheLine(t *testing.T) {
	text := "Denominación: AUXILIAR ADMINISTRATIVO\n" +
		"Requisitos Estudio: Bachiller, conocimientos de funciones públicas y dependencia estatal\n" +
		"Propósito: Atender la ventanilla"
	rec, err := newTestExtractor().Extract(model.RawRecord{Kind: model.RawText, Text: text})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Duties != "Atender la ventanilla" {
		t.Errorf("Duties = %q, want %q", rec.Duties, "Atender la ventanilla")
	}
	if rec.Dependency != "" {
		t.Errorf("Dependency = %q, want empty", rec.Dependency)
	}

	rec, err = newTestExtractor().Extract(model.RawRecord{Kind: model.RawText, Text: "Denominación: OPERARIO\nSin funciones asignadas"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Duties != "" || rec.DisabilityReserved {
		t.Errorf("expected no duties and no reservation, got %q / %v", rec.Duties, rec.DisabilityReserved)
	}
}

func TestExtract_VacancyAvailability(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		available int
	}{
		{"published zero", "Denominación: OPERARIO\nTotal de vacantes del empleo: 3\nVacantes disponibles: 0", 0},
		{"published count", "Denominación: OPERARIO\nTotal de vacantes del empleo: 3\nVacantes disponibles: 2", 2},
		{"not published", "Denominación: OPERARIO\nTotal de vacantes del empleo: 3", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := newTestExtractor().Extract(model.RawRecord{Kind: model.RawText, Text: tt.text})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.VacancyCount != 3 || rec.VacancyAvailable != tt.available {
				t.Errorf("vacancies = %d/%d, want 3/%d", rec.VacancyCount, rec.VacancyAvailable, tt.available)
			}
		})
	}
}

func TestExtract_TextFailures(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", "   \n "},
		{"no title", "Nivel: Asistencial\nGrado: 3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestExtractor().Extract(model.RawRecord{Kind: model.RawText, Text: tt.text, SourceID: "dgrid_0-row-1"})
			var pf *model.ExtractionPartialFailure
			if !errors.As(err, &pf) {
				t.Fatalf("expected ExtractionPartialFailure, got %v", err)
			}
		})
	}
}

func TestExtract_MunicipalityWithoutDepartmentIsCleared(t *testing.T) {
	rec, err := newTestExtractor().Extract(model.RawRecord{Kind: model.RawText, Text: "Denominación: OPERARIO\nMunicipio: Cali"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Municipality != "" {
		t.Errorf("Municipality = %q, want empty", rec.Municipality)
	}
}

func TestExtract_MunicipalityCarriesDepartment(t *testing.T) {
	rec, err := newTestExtractor().Extract(model.RawRecord{Kind: model.RawText, Text: "Denominación: OPERARIO\nMunicipio: Tuluá, Valle del Cauca"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Municipality != "Tuluá" || rec.Department != "Valle del Cauca" {
		t.Errorf("got municipality %q department %q", rec.Municipality, rec.Department)
	}
}

func TestExtract_DecomposedAccentsNormalized(t *testing.T) {
	// Labels and values with combining acute accents.
	text := "Denominacio\u0301n: CONDUCTOR\nDepartamento: Boyaca\u0301"
	rec, err := newTestExtractor().Extract(model.RawRecord{Kind: model.RawText, Text: text})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Title != "CONDUCTOR" || rec.Department != "Boyacá" {
		t.Errorf("got title %q department %q", rec.Title, rec.Department)
	}
}

const structuredItem = `{
	"id": 183214,
	"fechaCierreInscripcion": "2026-11-15",
	"empleo": {
		"codigoEmpleo": "219",
		"grado": "11",
		"nivelNombre": "Profesional",
		"denominacion": {"nombre": "PROFESIONAL UNIVERSITARIO"},
		"asignacionSalarial": 4500000,
		"concursoAscenso": true,
		"condicionDiscapacidad": false,
		"convocatoria": {
			"nombre": "Territorial 2024",
			"codigo": "T-2024",
			"agno": 2024,
			"tipoProceso": "Ascenso",
			"entidad": {"nombre": "Gobernación del Valle", "nit": "890399029", "tipoEntidad": "Territorial"}
		},
		"vacantes": [
			{"cantidad": 2, "disponibles": 1, "dependencia": "Secretaría de Educación",
			 "municipio": {"nombre": "Cali", "departamento": {"nombre": "Valle del Cauca"}}},
			{"cantidad": 1, "municipio": {"nombre": "Palmira", "departamento": {"nombre": "Valle del Cauca"}}}
		],
		"requisitosMinimos": [{"estudio": "Título profesional", "experiencia": "12 meses", "otros": "Tarjeta profesional"}],
		"funciones": [{"descripcion": "Planear"}, {"descripcion": "Ejecutar"}, {"descripcion": "Evaluar"}]
	}
}`

func TestExtract_Structured(t *testing.T) {
	rec, err := newTestExtractor().Extract(model.RawRecord{Kind: model.RawStructured, Data: json.RawMessage(structuredItem)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	checks := []struct{ field, got, want string }{
		{"ExternalID", rec.ExternalID, "183214"},
		{"Title", rec.Title, "PROFESIONAL UNIVERSITARIO"},
		{"Level", rec.Level, "Profesional"},
		{"EntityName", rec.EntityName, "Gobernación del Valle"},
		{"EntityTaxID", rec.EntityTaxID, "890399029"},
		{"ProcessType", rec.ProcessType, "Ascenso"},
		{"Department", rec.Department, "Valle del Cauca"},
		{"Municipality", rec.Municipality, "Cali"},
		{"Dependency", rec.Dependency, "Secretaría de Educación"},
		{"OtherRequirements", rec.OtherRequirements, "Tarjeta profesional"},
		{"Duties", rec.Duties, "Planear | Ejecutar | Evaluar"},
		{"ClosingDate", rec.ClosingDate, "2026-11-15"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.field, c.got, c.want)
		}
	}
	if rec.ProcessYear != 2024 || rec.VacancyCount != 2 || rec.VacancyAvailable != 1 {
		t.Errorf("numbers: year %d count %d available %d", rec.ProcessYear, rec.VacancyCount, rec.VacancyAvailable)
	}
	if rec.SalaryAmount == nil || *rec.SalaryAmount != 4500000 {
		t.Errorf("SalaryAmount = %v", rec.SalaryAmount)
	}
	if !rec.PromotionContest || rec.DisabilityReserved {
		t.Errorf("flags: promotion %v disability %v", rec.PromotionContest, rec.DisabilityReserved)
	}
}

func TestExtract_StructuredMissingSubObjects(t *testing.T) {
	inputs := []string{
		`{"id": 1}`,
		`{"id": "2", "empleo": null}`,
		`{"id": 3, "empleo": {"vacantes": [], "funciones": "none", "convocatoria": "x"}}`,
		`{"empleo": {"denominacion": "CONDUCTOR", "vacantes": [{"municipio": {"nombre": "Pasto"}}]}}`,
	}
	for _, in := range inputs {
		rec, err := newTestExtractor().Extract(model.RawRecord{Kind: model.RawStructured, Data: json.RawMessage(in)})
		if err != nil {
			t.Errorf("Extract(%s): unexpected error %v", in, err)
			continue
		}
		if rec.ExternalID == "" {
			t.Errorf("Extract(%s): empty external id", in)
		}
		if rec.SalaryAmount != nil || rec.VacancyCount != 0 || rec.Duties != "" || rec.DisabilityReserved {
			t.Errorf("Extract(%s): expected zero defaults, got %+v", in, rec)
		}
		if rec.Municipality != "" && rec.Department == "" {
			t.Errorf("Extract(%s): municipality without department", in)
		}
	}
}

func TestExtract_StructuredUndecodable(t *testing.T) {
	_, err := newTestExtractor().Extract(model.RawRecord{Kind: model.RawStructured, Data: json.RawMessage(`{"id":`)})
	var pf *model.ExtractionPartialFailure
	if !errors.As(err, &pf) {
		t.Fatalf("expected ExtractionPartialFailure, got %v", err)
	}
}

func TestParseSalary(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		nil  bool
	}{
		{in: "$ 4.500.000", want: 4500000},
		{in: "$4.500.000 Vigencia 2024", want: 4500000},
		{in: "2500000,50", want: 2500000.5},
		{in: "COP 1.300.000", want: 1300000},
		{in: "por definir", nil: true},
		{in: "", nil: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseSalary(tt.in)
			if tt.nil {
				if got != nil {
					t.Errorf("ParseSalary(%q) = %v, want nil", tt.in, *got)
				}
				return
			}
			if got == nil || *got != tt.want {
				t.Errorf("ParseSalary(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
