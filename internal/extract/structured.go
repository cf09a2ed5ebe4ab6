package extract

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/amishk599/simoradar/internal/model"
)

// dutiesSeparator joins the descriptions of a vacancy's functions.
const dutiesSeparator = " | "

// fromStructured reads one item of the paged resource. The item shape is
// fixed by the portal:
//
//	{
//	  "id": 183214,
//	  "fechaCierreInscripcion": "2026-11-15",
//	  "empleo": {
//	    "codigoEmpleo": "219", "grado": "11", "nivelNombre": "Profesional",
//	    "denominacion": {"nombre": "PROFESIONAL UNIVERSITARIO"},
//	    "asignacionSalarial": 4500000,
//	    "concursoAscenso": false, "condicionDiscapacidad": false,
//	    "convocatoria": {"nombre": "...", "codigo": "...", "agno": 2024,
//	      "tipoProceso": "Abierto",
//	      "entidad": {"nombre": "...", "nit": "...", "tipoEntidad": "..."}},
//	    "vacantes": [{"cantidad": 2, "disponibles": 2, "dependencia": "...",
//	      "municipio": {"nombre": "Cali", "departamento": {"nombre": "Valle del Cauca"}}}],
//	    "requisitosMinimos": [{"estudio": "...", "experiencia": "...", "otros": "..."}],
//	    "funciones": [{"descripcion": "..."}, ...]
//	  }
//	}
//
// Every lookup tolerates a missing or differently typed node and falls back to
// the zero value, so a well-formed JSON object never fails.
func fromStructured(raw model.RawRecord) (model.JobRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(raw.Data))
	dec.UseNumber()
	var item any
	if err := dec.Decode(&item); err != nil {
		return model.JobRecord{}, &model.ExtractionPartialFailure{SourceID: raw.SourceID, Reason: "decode item: " + err.Error()}
	}

	emp := at(item, "empleo")
	conv := at(emp, "convocatoria")
	ent := at(conv, "entidad")
	vac := at(emp, "vacantes", "0")
	req := at(emp, "requisitosMinimos", "0")

	rec := model.JobRecord{
		ExternalID:            firstNonEmpty(str(at(item, "id")), str(at(emp, "id")), raw.SourceID),
		Title:                 firstNonEmpty(str(at(emp, "denominacion", "nombre")), str(at(emp, "denominacion"))),
		Level:                 firstNonEmpty(str(at(emp, "nivelNombre")), str(at(emp, "nivel", "nombre")), str(at(emp, "nivel"))),
		Grade:                 str(at(emp, "grado")),
		Code:                  str(at(emp, "codigoEmpleo")),
		EntityName:            str(at(ent, "nombre")),
		EntityTaxID:           str(at(ent, "nit")),
		EntityType:            str(at(ent, "tipoEntidad")),
		ProcessName:           str(at(conv, "nombre")),
		ProcessCode:           str(at(conv, "codigo")),
		ProcessYear:           integer(at(conv, "agno")),
		ProcessType:           str(at(conv, "tipoProceso")),
		Department:            str(at(vac, "municipio", "departamento", "nombre")),
		Municipality:          str(at(vac, "municipio", "nombre")),
		Dependency:            str(at(vac, "dependencia")),
		SalaryAmount:          number(at(emp, "asignacionSalarial")),
		VacancyCount:          integer(at(vac, "cantidad")),
		VacancyAvailable:      integer(at(vac, "disponibles")),
		StudyRequirement:      str(at(req, "estudio")),
		ExperienceRequirement: str(at(req, "experiencia")),
		OtherRequirements:     str(at(req, "otros")),
		Duties:                joinDescriptions(at(emp, "funciones")),
		DisabilityReserved:    boolean(at(emp, "condicionDiscapacidad")),
		PromotionContest:      boolean(at(emp, "concursoAscenso")),
		ClosingDate:           firstNonEmpty(str(at(item, "fechaCierreInscripcion")), str(at(conv, "fechaCierreInscripcion"))),
	}
	if rec.ExternalID == "" {
		rec.ExternalID = contentID(string(raw.Data))
	}
	return rec, nil
}

// at walks v along keys. A numeric key indexes into an array. Any miss
// returns nil.
func at(v any, keys ...string) any {
	for _, k := range keys {
		switch node := v.(type) {
		case map[string]any:
			v = node[k]
		case []any:
			i, err := strconv.Atoi(k)
			if err != nil || i < 0 || i >= len(node) {
				return nil
			}
			v = node[i]
		default:
			return nil
		}
	}
	return v
}

func str(v any) string {
	switch x := v.(type) {
	case string:
		return clean(x)
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	}
	return ""
}

func number(v any) *float64 {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return nil
		}
		return &f
	case string:
		return ParseSalary(x)
	}
	return nil
}

func integer(v any) int {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return int(n)
		}
		if f, err := x.Float64(); err == nil {
			return int(f)
		}
	case string:
		return atoi(x)
	}
	return 0
}

func boolean(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case json.Number:
		return x.String() != "0"
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "si", "sí", "s", "1":
			return true
		}
	}
	return false
}

func joinDescriptions(v any) string {
	list, ok := v.([]any)
	if !ok {
		return ""
	}
	parts := make([]string, 0, len(list))
	for _, el := range list {
		d := str(at(el, "descripcion"))
		if d == "" {
			d = str(el)
		}
		if d != "" {
			parts = append(parts, d)
		}
	}
	return strings.Join(parts, dutiesSeparator)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
