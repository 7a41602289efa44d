// Package badger provides an embedded BadgerDB implementation of the repository interface
package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/pb"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/navikt/benchroom/internal/config"
	"github.com/navikt/benchroom/internal/logging"
	"github.com/navikt/benchroom/internal/models"
)

// ErrNotFound is returned when a requested entity is not found
var ErrNotFound = models.ErrNotFound

const (
	roomKeyPrefix    = "room:"
	checkInKeyPrefix = "checkin:"

	// maxConflictRetries bounds how often a read-modify-write transaction is retried
	maxConflictRetries = 5

	watchBuffer = 64

	// watchReadyKeyPrefix namespaces the marker keys written while a subscription starts
	watchReadyKeyPrefix = "watch:"
	watchReadyInterval  = 10 * time.Millisecond
	watchReadyTimeout   = 5 * time.Second
)

// Repository implements the repository interface on top of BadgerDB.
// Documents are stored as JSON values; partial updates run inside a single transaction.
type Repository struct {
	db *badger.DB
}

// NewRepository opens the Badger database described by cfg
func NewRepository(cfg config.BadgerConfig) (*Repository, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return NewRepositoryWithDB(db), nil
}

// NewRepositoryWithDB wraps an already opened database
func NewRepositoryWithDB(db *badger.DB) *Repository {
	return &Repository{db: db}
}

// Close closes the underlying database
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping reports an error once the database has been closed
func (r *Repository) Ping(ctx context.Context) error {
	if r.db.IsClosed() {
		return errors.New("badger database is closed")
	}
	return nil
}

// GetRoom retrieves the room document
func (r *Repository) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	var room models.Room
	err := r.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, roomKeyPrefix+id, &room)
	})
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// SaveRoom replaces the room document
func (r *Repository) SaveRoom(ctx context.Context, room *models.Room) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, roomKeyPrefix+room.ID, room)
	})
}

// CreateRoomIfAbsent writes room only if no document exists under its id
func (r *Repository) CreateRoomIfAbsent(ctx context.Context, room *models.Room) (bool, error) {
	created := false
	err := r.retryOnConflict(func(txn *badger.Txn) error {
		key := roomKeyPrefix + room.ID
		_, err := txn.Get([]byte(key))
		if err == nil {
			created = false
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("get room: %w", err)
		}
		created = true
		return setJSON(txn, key, room)
	})
	return created, err
}

// UpdateRoom merges the set fields of update into the stored room
func (r *Repository) UpdateRoom(ctx context.Context, id string, update models.RoomUpdate) error {
	return r.retryOnConflict(func(txn *badger.Txn) error {
		var room models.Room
		key := roomKeyPrefix + id
		if err := getJSON(txn, key, &room); err != nil {
			return err
		}
		update.Apply(&room)
		return setJSON(txn, key, &room)
	})
}

// AddCheckIn stores a new check-in record and returns its id
func (r *Repository) AddCheckIn(ctx context.Context, checkIn *models.CheckIn) (string, error) {
	if checkIn.ID == "" {
		checkIn.ID = uuid.NewString()
	}
	err := r.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, checkInKeyPrefix+checkIn.ID, checkIn)
	})
	if err != nil {
		return "", err
	}
	return checkIn.ID, nil
}

// GetCheckIn retrieves a check-in record by id
func (r *Repository) GetCheckIn(ctx context.Context, id string) (*models.CheckIn, error) {
	var checkIn models.CheckIn
	err := r.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, checkInKeyPrefix+id, &checkIn)
	})
	if err != nil {
		return nil, err
	}
	return &checkIn, nil
}

// UpdateCheckIn merges the set fields of update into the stored record
func (r *Repository) UpdateCheckIn(ctx context.Context, id string, update models.CheckInUpdate) error {
	return r.retryOnConflict(func(txn *badger.Txn) error {
		var checkIn models.CheckIn
		key := checkInKeyPrefix + id
		if err := getJSON(txn, key, &checkIn); err != nil {
			return err
		}
		update.Apply(&checkIn)
		return setJSON(txn, key, &checkIn)
	})
}

// ListCheckIns returns matching check-ins, newest first
func (r *Repository) ListCheckIns(ctx context.Context, filter models.CheckInFilter) ([]*models.CheckIn, error) {
	result := []*models.CheckIn{}

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(checkInKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var checkIn models.CheckIn
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &checkIn)
			})
			if err != nil {
				return fmt.Errorf("decode check-in: %w", err)
			}
			if filter.Matches(&checkIn) {
				result = append(result, &checkIn)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list check-ins: %w", err)
	}

	models.SortNewestFirst(result)
	return result, nil
}

// Watch streams changes committed to room and check-in keys until ctx is done.
// It returns once the subscription is live, so every later write is delivered.
func (r *Repository) Watch(ctx context.Context) (<-chan models.Change, error) {
	out := make(chan models.Change, watchBuffer)
	marker := []byte(watchReadyKeyPrefix + uuid.NewString())
	matches := []pb.Match{
		{Prefix: []byte(roomKeyPrefix)},
		{Prefix: []byte(checkInKeyPrefix)},
		{Prefix: marker},
	}

	ready := make(chan struct{})
	done := make(chan struct{})
	var readyOnce sync.Once

	go func() {
		defer close(out)
		defer close(done)
		err := r.db.Subscribe(ctx, func(kvs *badger.KVList) error {
			for _, kv := range kvs.Kv {
				if bytes.Equal(kv.Key, marker) {
					readyOnce.Do(func() { close(ready) })
					continue
				}
				change, ok := changeForKey(kv.Key)
				if !ok {
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		}, matches)
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Warn().Err(err).Msg("Badger change subscription ended")
		}
	}()

	if err := r.awaitSubscription(ctx, marker, ready, done); err != nil {
		return nil, err
	}
	return out, nil
}

// awaitSubscription writes the marker key until the subscriber observes it
func (r *Repository) awaitSubscription(ctx context.Context, marker []byte, ready, done <-chan struct{}) error {
	defer func() {
		if err := r.db.Update(func(txn *badger.Txn) error { return txn.Delete(marker) }); err != nil {
			logging.Debug().Err(err).Msg("Failed to remove watch marker")
		}
	}()

	ticker := time.NewTicker(watchReadyInterval)
	defer ticker.Stop()
	timeout := time.NewTimer(watchReadyTimeout)
	defer timeout.Stop()

	for {
		if err := r.db.Update(func(txn *badger.Txn) error { return txn.Set(marker, nil) }); err != nil {
			return fmt.Errorf("start watch: %w", err)
		}
		select {
		case <-ready:
			return nil
		case <-done:
			return errors.New("start watch: subscription ended")
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout.C:
			return errors.New("start watch: subscription did not become ready")
		case <-ticker.C:
		}
	}
}

func changeForKey(key []byte) (models.Change, bool) {
	switch {
	case bytes.HasPrefix(key, []byte(roomKeyPrefix)):
		return models.Change{Kind: models.ChangeKindRoom, ID: strings.TrimPrefix(string(key), roomKeyPrefix)}, true
	case bytes.HasPrefix(key, []byte(checkInKeyPrefix)):
		return models.Change{Kind: models.ChangeKindCheckIn, ID: strings.TrimPrefix(string(key), checkInKeyPrefix)}, true
	default:
		return models.Change{}, false
	}
}

func (r *Repository) retryOnConflict(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = r.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func getJSON(txn *badger.Txn, key string, v interface{}) error {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := txn.Set([]byte(key), data); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}
