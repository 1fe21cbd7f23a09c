package domain

// TierSummary is the per-confidence slice of a daily metric.
type TierSummary struct {
	Count        int     `json:"total"`
	MeanAccuracy float64 `json:"avg_accuracy"`
}

// ValidationMetric is the daily roll-up of every validated recommendation.
type ValidationMetric struct {
	Date              string                     `json:"date"`
	Total             int                        `json:"total_recommendations"`
	Accurate          int                        `json:"accurate_count"`
	PartiallyAccurate int                        `json:"partially_accurate_count"`
	Inaccurate        int                        `json:"inaccurate_count"`
	MeanAccuracy      float64                    `json:"avg_accuracy_score"`
	ByConfidence      map[Confidence]TierSummary `json:"recommendations_by_confidence"`
}

// AccuracyRate is the share of ACCURATE verdicts in percent.
func (m ValidationMetric) AccuracyRate() float64 {
	if m.Total == 0 {
		return 0
	}
	return float64(m.Accurate) / float64(m.Total) * 100
}

// SecuritySummary reports validated performance for one security.
type SecuritySummary struct {
	Security     string          `json:"security"`
	Total        int             `json:"total_validated"`
	MeanAccuracy float64         `json:"avg_accuracy_score"`
	Best         *Recommendation `json:"best,omitempty"`
	Worst        *Recommendation `json:"worst,omitempty"`
}
