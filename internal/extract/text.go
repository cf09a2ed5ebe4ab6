package extract

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/amishk599/simoradar/internal/model"
)

// label builds a case-insensitive pattern capturing the rest of the line after
// a literal label that starts the line.
func label(l string) *regexp.Regexp {
	return regexp.MustCompile(`(?im)^[ \t]*` + regexp.QuoteMeta(l) + `[ \t]*([^\n]+)`)
}

var (
	reTitle        = label("Denominación:")
	reLevel        = label("Nivel:")
	reGrade        = label("Grado:")
	reCode         = label("Código:")
	reOPEC         = label("Número OPEC:")
	reEntity       = label("Entidad:")
	reTaxID        = label("NIT:")
	reSalary       = label("Asignación salarial:")
	reClosing      = label("Cierre de inscripciones:")
	reStudy        = label("Requisitos Estudio:")
	reExperience   = label("Experiencia:")
	reOther        = label("Otros requisitos:")
	reDepartment   = label("Departamento:")
	reMunicipality = label("Municipio:")

	reProcess     = regexp.MustCompile(`(?im)CONVOCATORIA[ \t]+([^\n]+)`)
	reProcessType = regexp.MustCompile(`(?i)-[ \t]*(Abierto|Ascenso)\b`)
	reYear        = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	reDuties      = regexp.MustCompile(`(?im)^[ \t]*(?:Propósito|Funciones):[ \t]*([^\n]+)`)
	reDependency  = regexp.MustCompile(`(?im)^[ \t]*Dependencia:[ \t]*([^,\n]+)`)
	reVacancies   = regexp.MustCompile(`(?im)^[ \t]*Total de vacantes del empleo:?[ \t]*(\d+)`)
	reAvailable   = regexp.MustCompile(`(?im)^[ \t]*Vacantes disponibles:?[ \t]*(\d+)`)
	reDisability  = regexp.MustCompile(`(?im)^[ \t]*(?:vacantes[ \t]+)?reservad[oa]s? para personas con discapacidad:?[ \t]*([^\n]*)`)
	reRowDigits   = regexp.MustCompile(`(\d+)$`)
)

// titleVocabulary is the fallback when a row carries no "Denominación" label.
// Order only breaks ties; the earliest occurrence in the text wins.
var titleVocabulary = []string{
	"PROFESIONAL UNIVERSITARIO",
	"PROFESIONAL ESPECIALIZADO",
	"TÉCNICO OPERATIVO",
	"TÉCNICO ADMINISTRATIVO",
	"AUXILIAR ADMINISTRATIVO",
	"OPERARIO",
	"SECRETARIO EJECUTIVO",
	"CONDUCTOR",
}

var titlePatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(titleVocabulary))
	for i, t := range titleVocabulary {
		// Rows sometimes drop the accent on TECNICO.
		p := strings.ReplaceAll(regexp.QuoteMeta(t), "É", "[ÉE]")
		out[i] = regexp.MustCompile(`(?i)\b` + p + `\b`)
	}
	return out
}()

// fromText applies the label patterns to a rendered row.
func fromText(raw model.RawRecord) (model.JobRecord, error) {
	text := norm.NFC.String(raw.Text)
	if strings.TrimSpace(text) == "" {
		return model.JobRecord{}, &model.ExtractionPartialFailure{SourceID: raw.SourceID, Reason: "empty text"}
	}

	rec := model.JobRecord{
		Title:                 find(reTitle, text),
		Level:                 find(reLevel, text),
		Grade:                 find(reGrade, text),
		Code:                  find(reCode, text),
		EntityName:            find(reEntity, text),
		EntityTaxID:           find(reTaxID, text),
		ProcessName:           find(reProcess, text),
		ProcessType:           find(reProcessType, text),
		ClosingDate:           find(reClosing, text),
		StudyRequirement:      find(reStudy, text),
		ExperienceRequirement: find(reExperience, text),
		OtherRequirements:     find(reOther, text),
		Duties:                find(reDuties, text),
		Department:            find(reDepartment, text),
		Dependency:            find(reDependency, text),
		VacancyCount:          atoi(find(reVacancies, text)),
	}

	if rec.Title == "" {
		rec.Title = titleFromVocabulary(text)
	}
	if rec.Title == "" {
		return model.JobRecord{}, &model.ExtractionPartialFailure{SourceID: raw.SourceID, Reason: "no title"}
	}

	if s := find(reSalary, text); s != "" {
		rec.SalaryAmount = ParseSalary(s)
	}

	// "Municipio: Cali, Valle del Cauca" carries the department too.
	if m := find(reMunicipality, text); m != "" {
		city, dept, hasDept := strings.Cut(m, ",")
		rec.Municipality = clean(city)
		if rec.Department == "" && hasDept {
			rec.Department = clean(dept)
		}
	}

	rec.ProcessType = titleCase(rec.ProcessType)
	if rec.ProcessName != "" {
		if rec.EntityName == "" {
			rec.EntityName = entityFromProcess(rec.ProcessName)
		}
		if y := reYear.FindString(rec.ProcessName); y != "" {
			rec.ProcessYear = atoi(y)
		}
		if head, tail, ok := strings.Cut(rec.ProcessName, " - "); ok && strings.EqualFold(clean(tail), rec.ProcessType) {
			rec.ProcessName = clean(head)
		}
	}
	rec.PromotionContest = strings.EqualFold(rec.ProcessType, "Ascenso")

	if m := reDisability.FindStringSubmatch(text); m != nil {
		rec.DisabilityReserved = disabilityFlag(clean(m[1]))
	}

	rec.ExternalID = find(reOPEC, text)
	if rec.ExternalID == "" {
		rec.ExternalID = reRowDigits.FindString(raw.SourceID)
	}
	if rec.ExternalID == "" {
		rec.ExternalID = contentID(text)
	}
	// Rows without an availability line have every seat open.
	if available := find(reAvailable, text); available != "" {
		rec.VacancyAvailable = atoi(available)
	} else {
		rec.VacancyAvailable = rec.VacancyCount
	}

	return rec, nil
}

func find(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return clean(m[1])
}

func titleFromVocabulary(text string) string {
	best, bestAt := "", -1
	for i, re := range titlePatterns {
		loc := re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		if bestAt == -1 || loc[0] < bestAt {
			best, bestAt = titleVocabulary[i], loc[0]
		}
	}
	return best
}

// entityFromProcess pulls the entity out of a process line such as
// "Territorial 2024 Alcaldía de Cali - Abierto".
func entityFromProcess(process string) string {
	head, _, found := strings.Cut(process, " - ")
	if !found {
		return ""
	}
	if loc := reYear.FindStringIndex(head); loc != nil {
		return clean(head[loc[1]:])
	}
	return ""
}

// disabilityFlag reads the text that follows the reservation phrase. A count,
// a yes/no word, or nothing at all (the phrase alone means reserved).
func disabilityFlag(v string) bool {
	first, _, _ := strings.Cut(v, " ")
	first = strings.Trim(first, ".:,;")
	if first == "" {
		return true
	}
	if n, err := strconv.Atoi(first); err == nil {
		return n > 0
	}
	switch strings.ToLower(first) {
	case "no", "0", "ninguna", "ninguno":
		return false
	}
	return true
}

func titleCase(s string) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}
