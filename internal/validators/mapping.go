package validators

import "github.com/JonMunkholm/reportsheets/internal/schema"

// fieldMapping pairs a template field name with the validator that holds
// its codes.
type fieldMapping struct {
	field     string
	validator string
}

// fieldValidatorMappings is the ordered exact-match table used by
// ResolveValidatorName. Lookups ignore case and accents; the first match
// wins. Fields not listed here resolve to nothing.
var fieldValidatorMappings = []fieldMapping{
	// Identity
	{"TIPO_DOCUMENTO", "TIPO_DOCUMENTO"},
	{"ID_TIPO_DOCUMENTO", "TIPO_DOCUMENTO"},
	{"TIPO_IDENTIFICACION", "TIPO_DOCUMENTO"},
	{"ID_TIPO_IDENTIFICACION", "TIPO_DOCUMENTO"},
	{"SEXO_BIOLOGICO", "SEXO_BIOLOGICO"},
	{"ID_SEXO_BIOLOGICO", "SEXO_BIOLOGICO"},
	{"ID_SEXO", "SEXO_BIOLOGICO"},
	{"SEXO", "SEXO_BIOLOGICO"},
	{"ESTADO_CIVIL", "ESTADO_CIVIL"},
	{"ID_ESTADO_CIVIL", "ESTADO_CIVIL"},
	{"GRUPO_ETNICO", "GRUPO_ETNICO"},
	{"ID_GRUPO_ETNICO", "GRUPO_ETNICO"},
	{"ID_ETNIA", "GRUPO_ETNICO"},
	{"TIPO_DISCAPACIDAD", "TIPO_DISCAPACIDAD"},
	{"ID_TIPO_DISCAPACIDAD", "TIPO_DISCAPACIDAD"},
	{"ID_DISCAPACIDAD", "TIPO_DISCAPACIDAD"},

	// Geography
	{"PAIS", "PAIS"},
	{"ID_PAIS", "PAIS"},
	{"PAIS_NACIMIENTO", "PAIS"},
	{"ID_PAIS_NACIMIENTO", "PAIS"},
	{"PAIS_DESTINO", "PAIS"},
	{"ID_PAIS_DESTINO", "PAIS"},
	{"PAIS_ORIGEN", "PAIS"},
	{"ID_PAIS_ORIGEN", "PAIS"},
	{"DEPARTAMENTO", "DEPARTAMENTO"},
	{"ID_DEPARTAMENTO", "DEPARTAMENTO"},
	{"MUNICIPIO", "MUNICIPIO"},
	{"ID_MUNICIPIO", "MUNICIPIO"},
	{"ID_MUNICIPIO_NACIMIENTO", "MUNICIPIO"},

	// Academic
	{"NIVEL_FORMACION", "NIVEL_FORMACION"},
	{"ID_NIVEL_FORMACION", "NIVEL_FORMACION"},
	{"ID_NIVEL_ACADEMICO", "NIVEL_ACADEMICO"},
	{"NIVEL_ACADEMICO", "NIVEL_ACADEMICO"},
	{"ID_METODOLOGIA", "METODOLOGIA"},
	{"METODOLOGIA", "METODOLOGIA"},
	{"ID_AREA_CONOCIMIENTO", "AREA_CONOCIMIENTO"},
	{"AREA_CONOCIMIENTO", "AREA_CONOCIMIENTO"},
	{"ID_NUCLEO_BASICO", "NUCLEO_BASICO_CONOCIMIENTO"},
	{"ID_DEDICACION", "DEDICACION"},
	{"DEDICACION", "DEDICACION"},
	{"ID_TIPO_CONTRATO", "TIPO_CONTRATO"},
	{"TIPO_CONTRATO", "TIPO_CONTRATO"},

	// Extension and internationalization
	{"ID_FUENTE_NACIONAL", "FUENTE_NACIONAL"},
	{"FUENTE_NACIONAL", "FUENTE_NACIONAL"},
	{"ID_FUENTE_INTERNACIONAL", "FUENTE_INTERNACIONAL"},
	{"FUENTE_INTERNACIONAL", "FUENTE_INTERNACIONAL"},
	{"ID_TIPO_MOVILIDAD", "TIPO_MOVILIDAD"},
	{"TIPO_MOVILIDAD", "TIPO_MOVILIDAD"},
	{"ID_MOVILIDAD", "TIPO_MOVILIDAD"},
	{"ID_TIPO_IMPACTO", "IMPACTO"},
	{"ID_IMPACTO", "IMPACTO"},
	{"IMPACTO", "IMPACTO"},
	{"ID_ESTRATEGIA", "ESTRATEGIA"},
	{"ESTRATEGIA", "ESTRATEGIA"},
	{"ID_TIPO_EXTENSION", "TIPO_EXTENSION"},
	{"ID_POBLACION_ATENDIDA", "POBLACION_ATENDIDA"},
	{"ID_ROL", "ROL_PARTICIPANTE"},
	{"ID_CONVENIO", "TIPO_CONVENIO"},
}

// mappingIndex maps normalized field names to validator names, keeping
// the first entry for each field.
var mappingIndex = buildMappingIndex(fieldValidatorMappings)

func buildMappingIndex(mappings []fieldMapping) map[string]string {
	idx := make(map[string]string, len(mappings))
	for _, m := range mappings {
		key := schema.Normalize(m.field)
		if _, exists := idx[key]; !exists {
			idx[key] = m.validator
		}
	}
	return idx
}
