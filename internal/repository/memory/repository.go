// Package memory provides an in-memory implementation of the repository interface
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/navikt/benchroom/internal/models"
)

// ErrNotFound is returned when a requested entity is not found
var ErrNotFound = models.ErrNotFound

// watcherBuffer is the number of undelivered changes kept per watcher before new ones are dropped
const watcherBuffer = 64

// Repository implements the repository interface with in-memory storage
type Repository struct {
	rooms    map[string]*models.Room
	checkIns map[string]*models.CheckIn
	mu       sync.RWMutex

	watchers   map[chan models.Change]struct{}
	watchersMu sync.Mutex
}

// NewRepository creates a new in-memory repository
func NewRepository() *Repository {
	return &Repository{
		rooms:    make(map[string]*models.Room),
		checkIns: make(map[string]*models.CheckIn),
		watchers: make(map[chan models.Change]struct{}),
	}
}

// GetRoom retrieves a copy of the room document
func (r *Repository) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	return room.Clone(), nil
}

// SaveRoom writes the whole room document, replacing any previous version
func (r *Repository) SaveRoom(ctx context.Context, room *models.Room) error {
	r.mu.Lock()
	r.rooms[room.ID] = room.Clone()
	r.mu.Unlock()

	r.notify(models.Change{Kind: models.ChangeKindRoom, ID: room.ID})
	return nil
}

// CreateRoomIfAbsent stores the room only when no document exists under its id
func (r *Repository) CreateRoomIfAbsent(ctx context.Context, room *models.Room) (bool, error) {
	r.mu.Lock()
	if _, exists := r.rooms[room.ID]; exists {
		r.mu.Unlock()
		return false, nil
	}
	r.rooms[room.ID] = room.Clone()
	r.mu.Unlock()

	r.notify(models.Change{Kind: models.ChangeKindRoom, ID: room.ID})
	return true, nil
}

// UpdateRoom merges the set fields of update into the stored room
func (r *Repository) UpdateRoom(ctx context.Context, id string, update models.RoomUpdate) error {
	r.mu.Lock()
	room, ok := r.rooms[id]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	update.Apply(room)
	r.mu.Unlock()

	r.notify(models.Change{Kind: models.ChangeKindRoom, ID: id})
	return nil
}

// AddCheckIn appends a record to the ledger and returns its generated id
func (r *Repository) AddCheckIn(ctx context.Context, checkIn *models.CheckIn) (string, error) {
	if checkIn.ID == "" {
		checkIn.ID = uuid.NewString()
	}

	r.mu.Lock()
	r.checkIns[checkIn.ID] = checkIn.Clone()
	r.mu.Unlock()

	r.notify(models.Change{Kind: models.ChangeKindCheckIn, ID: checkIn.ID})
	return checkIn.ID, nil
}

// GetCheckIn retrieves a copy of a check-in record
func (r *Repository) GetCheckIn(ctx context.Context, id string) (*models.CheckIn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	checkIn, ok := r.checkIns[id]
	if !ok {
		return nil, ErrNotFound
	}
	return checkIn.Clone(), nil
}

// UpdateCheckIn merges the set fields of update into the stored record
func (r *Repository) UpdateCheckIn(ctx context.Context, id string, update models.CheckInUpdate) error {
	r.mu.Lock()
	checkIn, ok := r.checkIns[id]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	update.Apply(checkIn)
	r.mu.Unlock()

	r.notify(models.Change{Kind: models.ChangeKindCheckIn, ID: id})
	return nil
}

// ListCheckIns returns copies of the matching records, newest first
func (r *Repository) ListCheckIns(ctx context.Context, filter models.CheckInFilter) ([]*models.CheckIn, error) {
	r.mu.RLock()
	result := make([]*models.CheckIn, 0, len(r.checkIns))
	for _, c := range r.checkIns {
		if filter.Matches(c) {
			result = append(result, c.Clone())
		}
	}
	r.mu.RUnlock()

	models.SortNewestFirst(result)
	return result, nil
}

// Watch registers a change listener that is removed and closed when ctx is done
func (r *Repository) Watch(ctx context.Context) (<-chan models.Change, error) {
	ch := make(chan models.Change, watcherBuffer)

	r.watchersMu.Lock()
	r.watchers[ch] = struct{}{}
	r.watchersMu.Unlock()

	go func() {
		<-ctx.Done()
		r.watchersMu.Lock()
		delete(r.watchers, ch)
		r.watchersMu.Unlock()
		close(ch)
	}()

	return ch, nil
}

func (r *Repository) notify(change models.Change) {
	r.watchersMu.Lock()
	defer r.watchersMu.Unlock()

	for ch := range r.watchers {
		select {
		case ch <- change:
		default:
		}
	}
}

// Ping always succeeds for the in-memory store
func (r *Repository) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store
func (r *Repository) Close() error {
	return nil
}
