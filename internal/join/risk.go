package join

import "github.com/flowmaps/flowmaps-data/internal/domain/document"

// Risk output renames, applied after the joins.
var riskRenames = []struct{ from, to string }{
	{"population", "source_population"},
	{"active_cases_14", "source_cases_last_14_days"},
	{"active_cases_7", "source_cases_last_7_days"},
	{"total_cases", "source_cases"},
}

// caseJoinSkip are case fields not carried onto mobility rows: the join key
// and the fields mobility rows already describe.
var caseJoinSkip = []string{"id", "layer", "date"}

// Risk joins mobility rows to case rows on source == id and, when population
// is given, to population rows on source == id. Pass nil population when the
// case rows embed it. Each output row gets
//
//	source_cases_by_100k_last_14_days = 100000 * source_cases_last_14_days / source_population
//	risk = trips * source_cases_last_14_days / source_population
func Risk(mobility, cases, population []*document.Document) []*document.Document {
	rows := Inner(mobility, cases, []string{"source"}, []string{"id"}, AllExcept(caseJoinSkip...))
	if population != nil {
		rows = Inner(rows, population, []string{"source"}, []string{"id"}, Fields("population"))
	}
	for _, r := range rows {
		for _, rn := range riskRenames {
			r.Rename(rn.from, rn.to)
		}
		r.Set("source_cases_by_100k_last_14_days",
			derive(r, Per100k, "source_population", "source_cases_last_14_days"))
		r.Set("risk", derive(r, 1, "source_population", "trips", "source_cases_last_14_days"))
	}
	return rows
}
