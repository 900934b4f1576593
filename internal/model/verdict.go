package model

// RiskBucket is the two-level classification derived from the model label.
type RiskBucket string

const (
	RiskHigh RiskBucket = "high"
	RiskLow  RiskBucket = "low"
)

// BucketFor maps a churn label to its risk bucket.
func BucketFor(churn bool) RiskBucket {
	if churn {
		return RiskHigh
	}
	return RiskLow
}

// Verdict is the outcome of scoring one CustomerRecord.
type Verdict struct {
	ChurnProbability float64    `json:"churn_probability" yaml:"churn_probability"`
	PredictedLabel   bool       `json:"predicted_label" yaml:"predicted_label"`
	RiskBucket       RiskBucket `json:"risk_bucket" yaml:"risk_bucket"`
}

// NewVerdict assembles a Verdict from gateway output.
func NewVerdict(label bool, probability float64) Verdict {
	return Verdict{
		ChurnProbability: probability,
		PredictedLabel:   label,
		RiskBucket:       BucketFor(label),
	}
}
