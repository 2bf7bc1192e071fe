package core

// JobParams is the canonical, flat description of one training run.
//
// Values are stored in their normalized textual form; list-valued fields hold
// comma-joined entries. Use the params package to build a JobParams from loosely
// typed input instead of filling it by hand.
type JobParams struct {
	Country    string `json:"country" gorm:"size:64;index" validate:"required"`
	Revision   string `json:"revision,omitempty" gorm:"size:128"`
	StartDate  string `json:"start_date,omitempty" gorm:"size:32"`
	EndDate    string `json:"end_date,omitempty" gorm:"size:32"`
	Iterations int    `json:"iterations,omitempty" validate:"omitempty,gte=1"`
	Trials     int    `json:"trials,omitempty" validate:"omitempty,gte=1"`
	TrainSize  string `json:"train_size,omitempty" gorm:"size:128"`

	DepVar     string `json:"dep_var,omitempty" gorm:"size:255"`
	DepVarType string `json:"dep_var_type,omitempty" gorm:"size:64"`

	PaidMediaSpends string `json:"paid_media_spends,omitempty" gorm:"type:text"`
	PaidMediaVars   string `json:"paid_media_vars,omitempty" gorm:"type:text"`
	ContextVars     string `json:"context_vars,omitempty" gorm:"type:text"`
	FactorVars      string `json:"factor_vars,omitempty" gorm:"type:text"`
	OrganicVars     string `json:"organic_vars,omitempty" gorm:"type:text"`

	Adstock         string `json:"adstock,omitempty" gorm:"size:64"`
	Hyperparameters string `json:"hyperparameters,omitempty" gorm:"type:text"`

	// Data source. At least one of Query, Table or DataPath must be set.
	Query           string `json:"query,omitempty" gorm:"type:text"`
	Table           string `json:"table,omitempty" gorm:"size:512"`
	DataPath        string `json:"data_path,omitempty" gorm:"size:1024"`
	AnnotationsPath string `json:"annotations_path,omitempty" gorm:"size:1024"`
}

// HasDataSource reports whether the params reference any input data.
func (p JobParams) HasDataSource() bool {
	return p.Query != "" || p.Table != "" || p.DataPath != ""
}

// DataSourceKind names the data-source reference in use, preferring the
// query over the table over the direct path.
func (p JobParams) DataSourceKind() string {
	switch {
	case p.Query != "":
		return "query"
	case p.Table != "":
		return "table"
	case p.DataPath != "":
		return "data_path"
	default:
		return ""
	}
}
