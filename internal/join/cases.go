package join

import "github.com/flowmaps/flowmaps-data/internal/domain/document"

// CaseBookkeepingFields are storage fields stripped from consolidated case documents.
var CaseBookkeepingFields = []string{"d", "c", "updated_at", "_id", "was_missing", "type", "ev"}

// Case count fields and their per-100k derivations, in output order.
var casesPer100k = []struct{ field, derived string }{
	{"active_cases_14", "active_cases_14_by_100k"},
	{"active_cases_7", "active_cases_7_by_100k"},
	{"new_cases", "new_cases_by_100k"},
	{"total_cases", "total_cases_by_100k"},
}

// CleanCases removes bookkeeping fields in place.
func CleanCases(cases []*document.Document) {
	Drop(cases, CaseBookkeepingFields...)
}

// HasEmbeddedPopulation reports whether every case document carries its own
// population count.
func HasEmbeddedPopulation(cases []*document.Document) bool {
	if len(cases) == 0 {
		return false
	}
	for _, c := range cases {
		if !c.Has("population") {
			return false
		}
	}
	return true
}

// EnrichCases inner-joins cases to population on (id, layer, date), copying
// the population count onto each case row, then derives per-100k rates.
func EnrichCases(cases, population []*document.Document) []*document.Document {
	keys := []string{"id", "layer", "date"}
	rows := Inner(cases, population, keys, keys, Fields("population"))
	AddCasesPer100k(rows)
	return rows
}

// AddCasesPer100k sets the per-100k incidence fields on every row in place.
// Zero population surfaces as ±Inf or NaN; a missing count yields NaN.
func AddCasesPer100k(rows []*document.Document) {
	for _, r := range rows {
		for _, c := range casesPer100k {
			r.Set(c.derived, derive(r, Per100k, "population", c.field))
		}
	}
}
