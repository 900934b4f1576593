package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewVerdict(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Verdict{ChurnProbability: 0.73, PredictedLabel: true, RiskBucket: RiskHigh}, NewVerdict(true, 0.73))
	assert.Equal(t, RiskLow, NewVerdict(false, 0.1).RiskBucket)
}

func TestBucketFollowsLabelNotProbability(t *testing.T) {
	t.Parallel()

	// A label disagreeing with p > 0.5 still decides the bucket.
	assert.Equal(t, RiskLow, NewVerdict(false, 0.9).RiskBucket)
	assert.Equal(t, RiskHigh, NewVerdict(true, 0.2).RiskBucket)
}

func TestErrorMessages(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "validation: Age must be between 18 and 100", (&ValidationError{Field: "Age", Reason: "must be between 18 and 100"}).Error())
	assert.Equal(t, "missing required columns: CreditScore, Tenure", (&MissingColumns{Columns: []string{"CreditScore", "Tenure"}}).Error())
	assert.Equal(t, "ingest failed", (&IngestError{}).Error())
}

func TestAccount_Identity(t *testing.T) {
	t.Parallel()

	a := Account{Email: "ana@example.com", Username: "ana", Company: "Acme", Role: "Manager", Experience: "3-5 years", PasswordHash: "x"}
	assert.Equal(t, UserIdentity{Username: "ana", Company: "Acme", Role: "Manager", Experience: "3-5 years"}, a.Identity())
}
