package params

import (
	"github.com/jdziat/durable-training-queue/pkg/core"
)

// kind selects how a field's raw value is canonicalized.
type kind int

const (
	kindText      kind = iota // trimmed
	kindLower                 // trimmed, lower-cased
	kindDate                  // YYYY-MM-DD when parseable
	kindInt                   // integer, numeric-looking strings coerced
	kindList                  // ordered list, order matters for identity
	kindSet                   // list whose order does not matter for identity
	kindFloatList             // ordered list of numbers
	kindKeyValue              // key=value pairs, sorted by key
)

// field describes one recognized JobParams field.
type field struct {
	key     string
	aliases []string
	kind    kind
	text    func(*core.JobParams) *string
	number  func(*core.JobParams) *int
}

// fields lists every recognized field. Order is irrelevant: Canonical sorts by key.
var fields = []field{
	{key: "country", kind: kindLower, text: func(p *core.JobParams) *string { return &p.Country }},
	{key: "revision", kind: kindText, text: func(p *core.JobParams) *string { return &p.Revision }},
	{key: "start_date", aliases: []string{"date_min"}, kind: kindDate, text: func(p *core.JobParams) *string { return &p.StartDate }},
	{key: "end_date", aliases: []string{"date_max"}, kind: kindDate, text: func(p *core.JobParams) *string { return &p.EndDate }},
	{key: "iterations", aliases: []string{"iters"}, kind: kindInt, number: func(p *core.JobParams) *int { return &p.Iterations }},
	{key: "trials", kind: kindInt, number: func(p *core.JobParams) *int { return &p.Trials }},
	{key: "train_size", kind: kindFloatList, text: func(p *core.JobParams) *string { return &p.TrainSize }},
	{key: "dep_var", kind: kindText, text: func(p *core.JobParams) *string { return &p.DepVar }},
	{key: "dep_var_type", kind: kindLower, text: func(p *core.JobParams) *string { return &p.DepVarType }},
	{key: "paid_media_spends", kind: kindList, text: func(p *core.JobParams) *string { return &p.PaidMediaSpends }},
	{key: "paid_media_vars", kind: kindList, text: func(p *core.JobParams) *string { return &p.PaidMediaVars }},
	{key: "context_vars", kind: kindSet, text: func(p *core.JobParams) *string { return &p.ContextVars }},
	{key: "factor_vars", kind: kindSet, text: func(p *core.JobParams) *string { return &p.FactorVars }},
	{key: "organic_vars", kind: kindSet, text: func(p *core.JobParams) *string { return &p.OrganicVars }},
	{key: "adstock", kind: kindLower, text: func(p *core.JobParams) *string { return &p.Adstock }},
	{key: "hyperparameters", aliases: []string{"hyperparams"}, kind: kindKeyValue, text: func(p *core.JobParams) *string { return &p.Hyperparameters }},
	{key: "query", aliases: []string{"sql"}, kind: kindText, text: func(p *core.JobParams) *string { return &p.Query }},
	{key: "table", aliases: []string{"bq_table", "table_id"}, kind: kindText, text: func(p *core.JobParams) *string { return &p.Table }},
	{key: "data_path", aliases: []string{"gcs_path", "blob_path", "csv_path"}, kind: kindText, text: func(p *core.JobParams) *string { return &p.DataPath }},
	{key: "annotations_path", kind: kindText, text: func(p *core.JobParams) *string { return &p.AnnotationsPath }},
}

// Keys returns the canonical names of all recognized fields.
func Keys() []string {
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = f.key
	}
	return keys
}
