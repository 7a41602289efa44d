// Package redis provides a Redis/Valkey implementation of the repository interface
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/navikt/benchroom/internal/config"
	"github.com/navikt/benchroom/internal/logging"
	"github.com/navikt/benchroom/internal/models"
	"github.com/redis/go-redis/v9"
)

// Common errors
var (
	ErrNotFound = models.ErrNotFound
)

// writeIfAbsent stores a hash only when the key does not exist yet
var writeIfAbsent = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV))
return 1
`)

// writeIfExists merges fields into an existing hash and refuses to create a new one
var writeIfExists = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV))
return 1
`)

// Repository implements the repository interface with Redis storage.
// Rooms and check-ins are stored as hashes so partial updates only touch the given fields.
type Repository struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRepository creates a new Redis repository
func NewRepository(cfg config.RedisConfig) (*Repository, error) {
	var client *redis.Client

	// Use URI if provided, otherwise build connection from individual parameters
	if cfg.URI != "" {
		opt, err := redis.ParseURL(cfg.URI)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URI: %w", err)
		}

		// Use DB from config if not specified in the URI
		if opt.DB == 0 {
			opt.DB = cfg.DB
		}

		// Use credentials from config if not in URI
		if opt.Username == "" && cfg.Username != "" {
			opt.Username = cfg.Username
		}
		if opt.Password == "" && cfg.Password != "" {
			opt.Password = cfg.Password
		}

		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Repository{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		ttl:       cfg.CheckInTTL(),
	}, nil
}

// Close closes the Redis connection
func (r *Repository) Close() error {
	return r.client.Close()
}

// Ping checks that Redis is reachable
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// roomKey returns the Redis key for a room
func (r *Repository) roomKey(id string) string {
	return fmt.Sprintf("%srooms:%s", r.keyPrefix, id)
}

// checkInKey returns the Redis key for a check-in record
func (r *Repository) checkInKey(id string) string {
	return fmt.Sprintf("%scheckins:%s", r.keyPrefix, id)
}

// checkInIndexKey returns the key of the sorted set indexing check-ins by creation time
func (r *Repository) checkInIndexKey() string {
	return r.keyPrefix + "checkin-index"
}

// changesChannel returns the pub/sub channel carrying change notifications
func (r *Repository) changesChannel() string {
	return r.keyPrefix + "changes"
}

// GetRoom retrieves the room document
func (r *Repository) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	fields, err := r.client.HGetAll(ctx, r.roomKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return decodeRoom(fields)
}

// SaveRoom replaces the room document
func (r *Repository) SaveRoom(ctx context.Context, room *models.Room) error {
	args, err := roomFields(room)
	if err != nil {
		return err
	}

	key := r.roomKey(room.ID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, args...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save room: %w", err)
	}

	r.publish(ctx, models.Change{Kind: models.ChangeKindRoom, ID: room.ID})
	return nil
}

// CreateRoomIfAbsent writes the room only if no document exists under its id
func (r *Repository) CreateRoomIfAbsent(ctx context.Context, room *models.Room) (bool, error) {
	args, err := roomFields(room)
	if err != nil {
		return false, err
	}

	created, err := writeIfAbsent.Run(ctx, r.client, []string{r.roomKey(room.ID)}, args...).Int()
	if err != nil {
		return false, fmt.Errorf("failed to create room: %w", err)
	}
	if created == 0 {
		return false, nil
	}

	r.publish(ctx, models.Change{Kind: models.ChangeKindRoom, ID: room.ID})
	return true, nil
}

// UpdateRoom writes only the fields set in update
func (r *Repository) UpdateRoom(ctx context.Context, id string, update models.RoomUpdate) error {
	args, err := roomUpdateFields(update)
	if err != nil {
		return err
	}

	key := r.roomKey(id)
	if err := r.updateHash(ctx, key, args); err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}

	r.publish(ctx, models.Change{Kind: models.ChangeKindRoom, ID: id})
	return nil
}

// AddCheckIn stores a new check-in record and indexes it by creation time
func (r *Repository) AddCheckIn(ctx context.Context, checkIn *models.CheckIn) (string, error) {
	if checkIn.ID == "" {
		checkIn.ID = uuid.NewString()
	}

	args, err := checkInFields(checkIn)
	if err != nil {
		return "", err
	}

	key := r.checkInKey(checkIn.ID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, args...)
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		pipe.ZAdd(ctx, r.checkInIndexKey(), redis.Z{
			Score:  float64(checkIn.Timestamp.UnixMilli()),
			Member: checkIn.ID,
		})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to add check-in: %w", err)
	}

	r.publish(ctx, models.Change{Kind: models.ChangeKindCheckIn, ID: checkIn.ID})
	return checkIn.ID, nil
}

// GetCheckIn retrieves a check-in record by id
func (r *Repository) GetCheckIn(ctx context.Context, id string) (*models.CheckIn, error) {
	fields, err := r.client.HGetAll(ctx, r.checkInKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get check-in: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return decodeCheckIn(fields)
}

// UpdateCheckIn writes only the fields set in update
func (r *Repository) UpdateCheckIn(ctx context.Context, id string, update models.CheckInUpdate) error {
	if err := r.updateHash(ctx, r.checkInKey(id), checkInUpdateFields(update)); err != nil {
		return fmt.Errorf("failed to update check-in: %w", err)
	}

	r.publish(ctx, models.Change{Kind: models.ChangeKindCheckIn, ID: id})
	return nil
}

// ListCheckIns returns matching check-ins, newest first.
// Index entries whose record has expired are pruned from the index.
func (r *Repository) ListCheckIns(ctx context.Context, filter models.CheckInFilter) ([]*models.CheckIn, error) {
	ids, err := r.client.ZRevRange(ctx, r.checkInIndexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list check-ins: %w", err)
	}
	if len(ids) == 0 {
		return []*models.CheckIn{}, nil
	}

	// Use pipeline to get all records in one round trip
	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, r.checkInKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to list check-ins: %w", err)
	}

	result := make([]*models.CheckIn, 0, len(ids))
	var expired []interface{}
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			expired = append(expired, ids[i])
			continue
		}
		checkIn, err := decodeCheckIn(fields)
		if err != nil {
			logging.Warn().Err(err).Str("checkInId", ids[i]).Msg("Skipping unreadable check-in")
			continue
		}
		if filter.Matches(checkIn) {
			result = append(result, checkIn)
		}
	}

	if len(expired) > 0 {
		if err := r.client.ZRem(ctx, r.checkInIndexKey(), expired...).Err(); err != nil {
			logging.Warn().Err(err).Int("count", len(expired)).Msg("Failed to prune expired check-ins from index")
		}
	}

	models.SortNewestFirst(result)
	return result, nil
}

// Watch subscribes to the change channel. The subscription is confirmed before Watch returns.
func (r *Repository) Watch(ctx context.Context) (<-chan models.Change, error) {
	pubsub := r.client.Subscribe(ctx, r.changesChannel())
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to changes: %w", err)
	}

	out := make(chan models.Change)
	go func() {
		defer close(out)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var change models.Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					logging.Warn().Err(err).Msg("Ignoring malformed change notification")
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (r *Repository) updateHash(ctx context.Context, key string, args []interface{}) error {
	if len(args) == 0 {
		exists, err := r.client.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists == 0 {
			return ErrNotFound
		}
		return nil
	}

	updated, err := writeIfExists.Run(ctx, r.client, []string{key}, args...).Int()
	if err != nil {
		return err
	}
	if updated == 0 {
		return ErrNotFound
	}
	return nil
}

// publish broadcasts a change; the write has already succeeded so failures are only logged
func (r *Repository) publish(ctx context.Context, change models.Change) {
	payload, err := json.Marshal(change)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to encode change notification")
		return
	}
	if err := r.client.Publish(ctx, r.changesChannel(), payload).Err(); err != nil {
		logging.Warn().Err(err).Str("kind", string(change.Kind)).Str("id", change.ID).Msg("Failed to publish change notification")
	}
}

func roomFields(room *models.Room) ([]interface{}, error) {
	benches := room.BenchesInUse
	if benches == nil {
		benches = []models.Bench{}
	}
	encoded, err := json.Marshal(benches)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal benches: %w", err)
	}
	return []interface{}{
		"id", room.ID,
		"name", room.Name,
		"availability", strconv.FormatBool(room.Availability),
		"capacity", strconv.Itoa(room.Capacity),
		"currentOccupancy", strconv.Itoa(room.CurrentOccupancy),
		"benchesInUse", string(encoded),
	}, nil
}

func roomUpdateFields(update models.RoomUpdate) ([]interface{}, error) {
	var args []interface{}
	if update.Name != nil {
		args = append(args, "name", *update.Name)
	}
	if update.Availability != nil {
		args = append(args, "availability", strconv.FormatBool(*update.Availability))
	}
	if update.Capacity != nil {
		args = append(args, "capacity", strconv.Itoa(*update.Capacity))
	}
	if update.CurrentOccupancy != nil {
		args = append(args, "currentOccupancy", strconv.Itoa(*update.CurrentOccupancy))
	}
	if update.BenchesInUse != nil {
		benches := *update.BenchesInUse
		if benches == nil {
			benches = []models.Bench{}
		}
		encoded, err := json.Marshal(benches)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal benches: %w", err)
		}
		args = append(args, "benchesInUse", string(encoded))
	}
	return args, nil
}

func decodeRoom(fields map[string]string) (*models.Room, error) {
	room := &models.Room{
		ID:   fields["id"],
		Name: fields["name"],
	}

	var err error
	if room.Availability, err = strconv.ParseBool(fields["availability"]); err != nil {
		return nil, fmt.Errorf("invalid room availability: %w", err)
	}
	if room.Capacity, err = strconv.Atoi(fields["capacity"]); err != nil {
		return nil, fmt.Errorf("invalid room capacity: %w", err)
	}
	if room.CurrentOccupancy, err = strconv.Atoi(fields["currentOccupancy"]); err != nil {
		return nil, fmt.Errorf("invalid room occupancy: %w", err)
	}
	if err := json.Unmarshal([]byte(fields["benchesInUse"]), &room.BenchesInUse); err != nil {
		return nil, fmt.Errorf("invalid room benches: %w", err)
	}
	return room, nil
}

func checkInFields(checkIn *models.CheckIn) ([]interface{}, error) {
	encoded, err := json.Marshal(checkIn.Benches)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal benches: %w", err)
	}
	args := []interface{}{
		"id", checkIn.ID,
		"benches", string(encoded),
		"timeIn", checkIn.TimeIn,
		"timeOut", checkIn.TimeOut,
		"timestamp", checkIn.Timestamp.Format(time.RFC3339Nano),
		"checkedOut", strconv.FormatBool(checkIn.CheckedOut),
	}
	if checkIn.CheckOutTime != nil {
		args = append(args, "checkOutTime", checkIn.CheckOutTime.Format(time.RFC3339Nano))
	}
	return args, nil
}

func checkInUpdateFields(update models.CheckInUpdate) []interface{} {
	var args []interface{}
	if update.CheckedOut != nil {
		args = append(args, "checkedOut", strconv.FormatBool(*update.CheckedOut))
	}
	if update.CheckOutTime != nil {
		args = append(args, "checkOutTime", update.CheckOutTime.Format(time.RFC3339Nano))
	}
	return args
}

func decodeCheckIn(fields map[string]string) (*models.CheckIn, error) {
	checkIn := &models.CheckIn{
		ID:      fields["id"],
		TimeIn:  fields["timeIn"],
		TimeOut: fields["timeOut"],
	}

	if err := json.Unmarshal([]byte(fields["benches"]), &checkIn.Benches); err != nil {
		return nil, fmt.Errorf("invalid check-in benches: %w", err)
	}

	var err error
	if checkIn.Timestamp, err = time.Parse(time.RFC3339Nano, fields["timestamp"]); err != nil {
		return nil, fmt.Errorf("invalid check-in timestamp: %w", err)
	}
	if checkIn.CheckedOut, err = strconv.ParseBool(fields["checkedOut"]); err != nil {
		return nil, fmt.Errorf("invalid check-in state: %w", err)
	}
	if raw, ok := fields["checkOutTime"]; ok && raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid check-out time: %w", err)
		}
		checkIn.CheckOutTime = &t
	}
	return checkIn, nil
}
