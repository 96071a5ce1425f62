package domain

import "testing"

func TestStageMapEligible(t *testing.T) {
	s := StageMap{WaitingForProof: 100, ProofReceived: 143, Retry: 144, ProofRejected: 145}

	for _, stage := range []int{100, 144, 145} {
		if !s.Eligible(stage) {
			t.Errorf("Eligible(%d) = false, want true", stage)
		}
	}
	for _, stage := range []int{143, 999, 0} {
		if s.Eligible(stage) {
			t.Errorf("Eligible(%d) = true, want false", stage)
		}
	}
}

// A tenant without a configured retry or rejected stage must not treat stage 0
// leads as in-window.
func TestStageMapEligible_UnconfiguredStagesNeverMatchZero(t *testing.T) {
	s := StageMap{WaitingForProof: 100, ProofReceived: 143}
	if s.Eligible(0) {
		t.Error("Eligible(0) = true")
	}
}

func TestStageMapRejectedStage(t *testing.T) {
	withRetry := StageMap{Retry: 144, ProofRejected: 145}
	if got := withRetry.RejectedStage(); got != 144 {
		t.Errorf("RejectedStage() = %d, want dedicated retry stage 144", got)
	}
	withoutRetry := StageMap{ProofRejected: 145}
	if got := withoutRetry.RejectedStage(); got != 145 {
		t.Errorf("RejectedStage() = %d, want proofRejected fallback 145", got)
	}
}

func TestStageMapEscalationStage(t *testing.T) {
	both := StageMap{ManualHelp: 146, NoResponse: 147}
	if got := both.EscalationStage(); got != 146 {
		t.Errorf("EscalationStage() = %d, want manualHelp 146", got)
	}
	fallback := StageMap{NoResponse: 147}
	if got := fallback.EscalationStage(); got != 147 {
		t.Errorf("EscalationStage() = %d, want noResponse fallback 147", got)
	}
}
