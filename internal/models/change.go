package models

// ChangeKind identifies which collection a change notification refers to
type ChangeKind string

const (
	ChangeKindRoom    ChangeKind = "room"
	ChangeKindCheckIn ChangeKind = "checkin"
	ChangeKindSupport ChangeKind = "support"
)

// Change is emitted by the store whenever a document is written
type Change struct {
	Kind ChangeKind `json:"kind"`
	ID   string     `json:"id"`
}
