package waitlist

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ticketly/internal/logger"
)

// Waitlist tracks users waiting for capacity on a sold out event. Each
// event gets a Redis sorted set keyed by join time, so position is just
// the member's rank.
type Waitlist struct {
	Redis *redis.Client
	Log   *logger.Logger
}

func New(redisClient *redis.Client, log *logger.Logger) *Waitlist {
	return &Waitlist{Redis: redisClient, Log: log}
}

// Connect creates a Redis client and verifies connectivity.
func Connect(addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		PoolSize: 10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

func key(eventID string) string {
	return "waitlist:" + eventID
}

// Join adds the user to the event's waitlist and returns their 1-based
// position. Joining twice keeps the original position.
func (w *Waitlist) Join(ctx context.Context, eventID, userID string) (int64, error) {
	err := w.Redis.ZAddNX(ctx, key(eventID), &redis.Z{
		Score:  float64(time.Now().UnixNano()),
		Member: userID,
	}).Err()
	if err != nil {
		return 0, fmt.Errorf("join waitlist for event %s: %w", eventID, err)
	}
	return w.Position(ctx, eventID, userID)
}

// Leave removes the user from the event's waitlist.
func (w *Waitlist) Leave(ctx context.Context, eventID, userID string) error {
	if err := w.Redis.ZRem(ctx, key(eventID), userID).Err(); err != nil {
		return fmt.Errorf("leave waitlist for event %s: %w", eventID, err)
	}
	return nil
}

// Position returns the user's 1-based rank, or 0 if they are not waiting.
func (w *Waitlist) Position(ctx context.Context, eventID, userID string) (int64, error) {
	rank, err := w.Redis.ZRank(ctx, key(eventID), userID).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("waitlist position for event %s: %w", eventID, err)
	}
	return rank + 1, nil
}

// Count returns the number of users waiting on the event.
func (w *Waitlist) Count(ctx context.Context, eventID string) (int64, error) {
	n, err := w.Redis.ZCard(ctx, key(eventID)).Result()
	if err != nil {
		return 0, fmt.Errorf("waitlist count for event %s: %w", eventID, err)
	}
	return n, nil
}

// Next returns up to limit user IDs from the front of the queue.
func (w *Waitlist) Next(ctx context.Context, eventID string, limit int64) ([]string, error) {
	members, err := w.Redis.ZRange(ctx, key(eventID), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("waitlist head for event %s: %w", eventID, err)
	}
	return members, nil
}

// RemoveFromWaitlist drops the user after they acquired tickets. Errors
// are logged, not returned; issuance already succeeded at this point.
func (w *Waitlist) RemoveFromWaitlist(ctx context.Context, eventID, userID string) {
	if err := w.Leave(ctx, eventID, userID); err != nil {
		w.Log.Error("WAITLIST", fmt.Sprintf("remove %s from event %s: %v", userID, eventID, err))
	}
}
