package rates

// Report is the analysis output document: the capture identity echoed
// back, the model that produced the estimates, and one entry per analyzed
// paper.
type Report struct {
	UserID    string          `json:"user_id"`
	ScrapedAt string          `json:"scraped_at"`
	Model     ModelInfo       `json:"model"`
	Papers    []PaperAnalysis `json:"papers"`
}

// ModelInfo records which variance mode produced a report. Exactly one of
// ObsOverdispersion and ObsVar is set.
type ModelInfo struct {
	Type              string   `json:"type"`
	ProcessVar        float64  `json:"process_var"`
	MinCount          float64  `json:"min_count"`
	ObsOverdispersion *float64 `json:"obs_overdispersion,omitempty"`
	ObsVar            *float64 `json:"obs_var,omitempty"`
}

// PaperAnalysis is one paper's smoothed citation history. All sequence
// fields are index-aligned with Years; a paper with no citation data
// carries empty sequences and no forecast block.
type PaperAnalysis struct {
	Title             string    `json:"title"`
	Years             []int     `json:"years"`
	ObservedCitations []float64 `json:"observed_citations"`
	ExposureFraction  []float64 `json:"exposure_fraction"`
	EmpiricalRate     []float64 `json:"empirical_rate"`
	SmoothedRate      []float64 `json:"smoothed_rate"`
	SmoothedLogRate   []float64 `json:"smoothed_log_rate"`
	SmoothedRateStd   []float64 `json:"smoothed_rate_std"`

	Forecast *PaperForecast `json:"forecast,omitempty"`
}

// PaperForecast extends a paper past its final observed year. Sequence
// fields are index-aligned with Years, one entry per horizon step.
type PaperForecast struct {
	Years          []int               `json:"years"`
	LogRateVar     []float64           `json:"log_rate_var"`
	RateMedian     []float64           `json:"rate_median"`
	RateStd        []float64           `json:"rate_std"`
	SampledLogRate []float64           `json:"sampled_log_rate"`
	SampledRate    []float64           `json:"sampled_rate"`
	Assumptions    ForecastAssumptions `json:"assumptions"`
}

// ForecastAssumptions records the model behind a forecast block.
type ForecastAssumptions struct {
	Model             string  `json:"model"`
	ProcessVar        float64 `json:"process_var"`
	ObsOverdispersion float64 `json:"obs_overdispersion"`
	MinCount          float64 `json:"min_count"`
}

// emptyAnalysis is the valid all-empty record for a paper with no citation
// data. Sequences are allocated empty so the report serializes them as
// arrays, never null.
func emptyAnalysis(title string) *PaperAnalysis {
	return &PaperAnalysis{
		Title:             title,
		Years:             []int{},
		ObservedCitations: []float64{},
		ExposureFraction:  []float64{},
		EmpiricalRate:     []float64{},
		SmoothedRate:      []float64{},
		SmoothedLogRate:   []float64{},
		SmoothedRateStd:   []float64{},
	}
}
