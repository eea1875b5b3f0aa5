package services

// GateDecision is the outcome of the quality gate.
type GateDecision string

const (
	DecisionAccept  GateDecision = "accept"
	DecisionImprove GateDecision = "improve"
)

// DecideQuality accepts content scoring at or above the threshold; the
// boundary is inclusive. Anything below gets one improve pass.
func DecideQuality(score, threshold int) GateDecision {
	if score >= threshold {
		return DecisionAccept
	}
	return DecisionImprove
}
