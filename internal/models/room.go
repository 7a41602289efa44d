package models

// DefaultRoomID is the fixed key of the room document
const DefaultRoomID = "room"

// Room represents the physical lab room and its aggregate occupancy
type Room struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Availability     bool    `json:"availability"`
	Capacity         int     `json:"capacity"`
	CurrentOccupancy int     `json:"currentOccupancy"`
	BenchesInUse     []Bench `json:"benchesInUse"`
}

// NewSampleRoom returns the placeholder room written when none exists yet
func NewSampleRoom(id string) *Room {
	return &Room{
		ID:               id,
		Name:             "Sample Room",
		Availability:     true,
		Capacity:         10,
		CurrentOccupancy: 0,
		BenchesInUse:     []Bench{},
	}
}

// IsBenchInUse returns true if the bench is currently reserved
func (r *Room) IsBenchInUse(bench Bench) bool {
	return ContainsBench(r.BenchesInUse, bench)
}

// Drift is the difference between the occupancy counter and the number of
// benches in use. The two are maintained independently and are allowed to diverge.
func (r *Room) Drift() int {
	return r.CurrentOccupancy - len(r.BenchesInUse)
}

// RoomUpdate is a partial update of a room; nil fields are left untouched
type RoomUpdate struct {
	Name             *string  `json:"name,omitempty"`
	Availability     *bool    `json:"availability,omitempty"`
	Capacity         *int     `json:"capacity,omitempty"`
	CurrentOccupancy *int     `json:"currentOccupancy,omitempty"`
	BenchesInUse     *[]Bench `json:"benchesInUse,omitempty"`
}

// Apply copies the set fields of the update onto the room
func (u RoomUpdate) Apply(r *Room) {
	if u.Name != nil {
		r.Name = *u.Name
	}
	if u.Availability != nil {
		r.Availability = *u.Availability
	}
	if u.Capacity != nil {
		r.Capacity = *u.Capacity
	}
	if u.CurrentOccupancy != nil {
		r.CurrentOccupancy = *u.CurrentOccupancy
	}
	if u.BenchesInUse != nil {
		benches := make([]Bench, len(*u.BenchesInUse))
		copy(benches, *u.BenchesInUse)
		r.BenchesInUse = benches
	}
}

// Clone returns a deep copy of the room
func (r *Room) Clone() *Room {
	c := *r
	c.BenchesInUse = make([]Bench, len(r.BenchesInUse))
	copy(c.BenchesInUse, r.BenchesInUse)
	return &c
}
