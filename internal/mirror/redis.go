package mirror

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/example/dutyroster/internal/duty"
)

const redisSnapshotKey = "dutyroster:schedule"

// Redis persists schedule snapshots in a Redis hash, one field per date key.
type Redis struct {
	client *redis.Client
}

// OpenRedis connects to Redis and verifies the connection with a ping.
func OpenRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("mirror: failed to connect to redis: %w", err)
	}
	return &Redis{client: client}, nil
}

// Save replaces the stored snapshot with the provided schedule atomically.
func (r *Redis) Save(ctx context.Context, schedule duty.Schedule) error {
	fields := make(map[string]interface{}, len(schedule))
	for date, assignment := range schedule {
		encoded, err := json.Marshal(assignment)
		if err != nil {
			return fmt.Errorf("mirror: failed to encode %s: %w", date, err)
		}
		fields[date] = encoded
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, redisSnapshotKey)
	if len(fields) > 0 {
		pipe.HSet(ctx, redisSnapshotKey, fields)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mirror: failed to write snapshot: %w", err)
	}
	return nil
}

// Load reads the stored snapshot back as a full schedule.
func (r *Redis) Load(ctx context.Context) (duty.Schedule, error) {
	fields, err := r.client.HGetAll(ctx, redisSnapshotKey).Result()
	if err != nil {
		return nil, fmt.Errorf("mirror: failed to read snapshot: %w", err)
	}

	schedule := make(duty.Schedule, len(fields))
	for date, encoded := range fields {
		var assignment duty.Assignment
		if err := json.Unmarshal([]byte(encoded), &assignment); err != nil {
			return nil, fmt.Errorf("mirror: failed to decode %s: %w", date, err)
		}
		schedule[date] = assignment
	}
	return schedule, nil
}

// Ping verifies the Redis connection is alive.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}
