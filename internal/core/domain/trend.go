package domain

// TrendPoint is the viability rate of one class at one history record.
type TrendPoint struct {
	Timestamp string  `json:"timestamp"`
	Rate      float64 `json:"rate"`
}

// TrendSeries holds one ordered series per class.
type TrendSeries map[ClassName][]TrendPoint

type SeriesSummary struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// Significance is the advisory outcome of a two-sample test. When Available is
// false the raw series are still valid and Reason explains why no test ran.
type Significance struct {
	Available   bool    `json:"available"`
	Reason      string  `json:"reason,omitempty"`
	TStatistic  float64 `json:"t_statistic,omitempty"`
	PValue      float64 `json:"p_value,omitempty"`
	Alpha       float64 `json:"alpha"`
	Significant bool    `json:"significant"`
}

// GroupComparison contrasts the control class against the mean of the others.
type GroupComparison struct {
	Control             ClassName     `json:"control"`
	Timestamps          []string      `json:"timestamps"`
	ControlSeries       []float64     `json:"control_series"`
	ExperimentalSeries  []float64     `json:"experimental_series"`
	ControlSummary      SeriesSummary `json:"control_summary"`
	ExperimentalSummary SeriesSummary `json:"experimental_summary"`
	Significance        Significance  `json:"significance"`
}
