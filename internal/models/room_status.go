package models

// BenchStatus is the display state of a single bench
type BenchStatus struct {
	Bench Bench `json:"bench"`
	InUse bool  `json:"inUse"`
}

// RoomStatus represents the current status of the room for display purposes
type RoomStatus struct {
	Room    *Room         `json:"room"`
	Benches []BenchStatus `json:"benches"`
	Drift   int           `json:"drift"`
}
