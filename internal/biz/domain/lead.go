package domain

// LeadState is the slice of a remote CRM lead this system reads and writes.
// The CRM remains the sole source of truth; nothing here is cached between
// requests.
type LeadState struct {
	ID         int64
	PipelineID int
	StageID    int
	RetryCount int
	TrackingID string
	Amount     float64
}

// LeadUpdate describes a partial write against a lead. Nil fields are left
// untouched on the remote record.
type LeadUpdate struct {
	StageID    *int
	RetryCount *int
	TrackingID *string
}

// StageMap maps the named pipeline stages of a tenant's funnel to the CRM's
// opaque numeric status IDs. Zero means the stage is not configured.
type StageMap struct {
	WaitingForProof int
	ProofReceived   int
	ProofRejected   int
	NoResponse      int
	ManualHelp      int
	Retry           int
	Transferred     int
}

// RejectedStage returns the stage a lead moves to after a rejected submission
// that has retries left. Tenants that configure a dedicated retry stage use
// it; others reuse the proof-rejected stage.
func (s StageMap) RejectedStage() int {
	if s.Retry != 0 {
		return s.Retry
	}
	return s.ProofRejected
}

// EscalationStage returns the stage used when the retry budget is exhausted.
// Manual-help takes precedence over no-response when both are configured.
func (s StageMap) EscalationStage() int {
	if s.ManualHelp != 0 {
		return s.ManualHelp
	}
	return s.NoResponse
}

// Eligible reports whether a lead in the given stage is inside the proof
// confirmation window. Events for leads anywhere else are ignored entirely.
func (s StageMap) Eligible(stageID int) bool {
	if stageID == 0 {
		return false
	}
	switch stageID {
	case s.WaitingForProof, s.Retry, s.ProofRejected:
		return true
	}
	return false
}

// PlayerCredentials is the result of provisioning a gaming-backend account
// for a confirmed lead.
type PlayerCredentials struct {
	Username string
	Password string
}
