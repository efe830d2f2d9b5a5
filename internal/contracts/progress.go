package contracts

// ProgressRecord is the cumulative committed progress of one KPI for one year
type ProgressRecord struct {
	KRAID   string  `json:"kraId"`
	KPIID   string  `json:"kpiId"`
	Year    int     `json:"year"`
	Current float64 `json:"current"`
	Target  float64 `json:"target"`
	Version int64   `json:"version"`
}

// ProgressEntry is one quarterly progress value
type ProgressEntry struct {
	KRAID   string  `json:"kraId" yaml:"kraId"`
	KPIID   string  `json:"kpiId" yaml:"kpiId"`
	Year    int     `json:"year" yaml:"year"`
	Quarter int     `json:"quarter" yaml:"quarter"`
	Value   float64 `json:"value" yaml:"value"`
}
