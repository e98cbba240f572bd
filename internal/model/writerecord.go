package model

// StepStatus is the outcome of one sink write.
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepOK      StepStatus = "ok"
	StepFailed  StepStatus = "failed"
)

// Step records one sink write.
type Step struct {
	Status StepStatus
	Err    error
}

// WriteRecord tracks the primary (document store) and mirror (search index)
// writes of one document. Each step is retried independently.
type WriteRecord struct {
	LegacyID int64
	ID       string
	Primary  Step
	Mirror   Step

	// Updated is true when the document replaced an existing one
	Updated bool
}

// NewWriteRecord returns a record with both steps pending.
func NewWriteRecord(legacyID int64, id string, updated bool) *WriteRecord {
	return &WriteRecord{
		LegacyID: legacyID,
		ID:       id,
		Updated:  updated,
		Primary:  Step{Status: StepPending},
		Mirror:   Step{Status: StepPending},
	}
}

// OK reports whether both steps succeeded.
func (r *WriteRecord) OK() bool {
	return r.Primary.Status == StepOK && r.Mirror.Status == StepOK
}

// Failed reports whether any step failed.
func (r *WriteRecord) Failed() bool {
	return r.Primary.Status == StepFailed || r.Mirror.Status == StepFailed
}
