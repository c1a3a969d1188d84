package validators

import (
	"github.com/JonMunkholm/reportsheets/internal/schema"
)

// codeColumns picks the code column and the description column for a
// validator reference. The referenced column is used when it exists,
// otherwise the flagged identifier column. The description column is
// absent when no column name looks descriptive.
func codeColumns(v schema.Validator, column string) (code schema.Column, desc schema.Column, hasDesc bool, ok bool) {
	if column != "" {
		code, ok = v.ColumnByName(column)
	}
	if !ok {
		code, ok = v.IdentifierColumn()
	}
	if !ok {
		return schema.Column{}, schema.Column{}, false, false
	}

	desc, hasDesc = v.DescriptionColumn()
	if hasDesc && desc.Name == code.Name {
		hasDesc = false
	}
	return code, desc, hasDesc, true
}

// OptionLabels returns the ordered, de-duplicated dropdown entries for a
// validator reference: "<id> - <description>", or the raw id when no
// description exists.
func OptionLabels(v schema.Validator, column string) []string {
	code, desc, hasDesc, ok := codeColumns(v, column)
	if !ok {
		return nil
	}

	seen := make(map[string]bool, len(code.Values))
	out := make([]string, 0, len(code.Values))
	for i, raw := range code.Values {
		id := schema.FormatValue(raw)
		if id == "" {
			continue
		}
		label := id
		if hasDesc && i < len(desc.Values) {
			if d := schema.FormatValue(desc.Values[i]); d != "" {
				label = id + " - " + d
			}
		}
		if seen[label] {
			continue
		}
		seen[label] = true
		out = append(out, label)
	}
	return out
}

// ReverseLookup maps the normalized forms of every id, description and
// "id - description" string to the canonical id, so that a typed label, a
// raw code or a dropdown entry all resolve to the stored code. Ids take
// precedence over combined labels, which take precedence over
// descriptions.
func ReverseLookup(v schema.Validator, column string) map[string]string {
	code, desc, hasDesc, ok := codeColumns(v, column)
	if !ok {
		return nil
	}

	type pair struct{ id, desc string }
	pairs := make([]pair, 0, len(code.Values))
	for i, raw := range code.Values {
		id := schema.FormatValue(raw)
		if id == "" {
			continue
		}
		p := pair{id: id}
		if hasDesc && i < len(desc.Values) {
			p.desc = schema.FormatValue(desc.Values[i])
		}
		pairs = append(pairs, p)
	}

	m := make(map[string]string, len(pairs)*3)
	put := func(key, id string) {
		key = schema.Normalize(key)
		if key == "" {
			return
		}
		if _, exists := m[key]; !exists {
			m[key] = id
		}
	}
	for _, p := range pairs {
		put(p.id, p.id)
	}
	for _, p := range pairs {
		if p.desc != "" {
			put(p.id+" - "+p.desc, p.id)
		}
	}
	for _, p := range pairs {
		if p.desc != "" {
			put(p.desc, p.id)
		}
	}
	return m
}
