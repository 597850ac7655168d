package defines

// BillStatus represents the current state of a bill in the analysis pipeline
type BillStatus string

const (
	BillStatusQueued     BillStatus = "queued"
	BillStatusProcessing BillStatus = "processing"
	BillStatusCompleted  BillStatus = "completed"
	BillStatusFailed     BillStatus = "failed"
)

// Valid reports whether s is one of the known bill statuses.
func (s BillStatus) Valid() bool {
	switch s {
	case BillStatusQueued, BillStatusProcessing, BillStatusCompleted, BillStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s is an end state. Terminal bills only move
// again through an explicit reprocess, never inside the pipeline.
func (s BillStatus) Terminal() bool {
	return s == BillStatusCompleted || s == BillStatusFailed
}
