package domain

// Confidence is the classifier's self-reported certainty.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Classification is the verdict on a single payment-proof attachment. It is
// transient: only its effect on lead state is ever persisted.
type Classification struct {
	IsProof    bool
	Confidence Confidence
	Reason     string
}
