package storequeue

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ErrQueueEmpty is returned by Next when no buyer is waiting
var ErrQueueEmpty = errors.New("store queue is empty")

// Service manages per-trader buyer queues. Each trader's storefront holds a
// redis list of buyer ids in arrival order, so the queue survives API
// restarts and is shared across instances.
type Service struct {
	client *redis.Client
}

// NewService creates a store queue service over a redis client
func NewService(client *redis.Client) *Service {
	return &Service{client: client}
}

func queueKey(traderID string) string {
	return fmt.Sprintf("store_queue:%s", traderID)
}

// Join appends a buyer to a trader's queue. Joining your own storefront or
// joining twice is a no-op, the position from the first join is kept.
func (s *Service) Join(ctx context.Context, traderID, buyerID string) error {
	if buyerID == traderID {
		return nil
	}

	key := queueKey(traderID)

	pos, err := s.client.LPos(ctx, key, buyerID, redis.LPosArgs{}).Result()
	if err == nil && pos >= 0 {
		return nil
	}
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to check queue membership: %w", err)
	}

	if err := s.client.RPush(ctx, key, buyerID).Err(); err != nil {
		return fmt.Errorf("failed to join queue: %w", err)
	}

	log.Info().
		Str("component", "store_queue").
		Str("trader_id", traderID).
		Str("buyer_id", buyerID).
		Msg("buyer joined store queue")

	return nil
}

// Next pops the longest waiting buyer from a trader's queue
func (s *Service) Next(ctx context.Context, traderID string) (string, error) {
	buyerID, err := s.client.LPop(ctx, queueKey(traderID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrQueueEmpty
	}
	if err != nil {
		return "", fmt.Errorf("failed to pop queue: %w", err)
	}

	log.Info().
		Str("component", "store_queue").
		Str("trader_id", traderID).
		Str("buyer_id", buyerID).
		Msg("buyer dequeued from store queue")

	return buyerID, nil
}

// Length reports how many buyers are waiting for a trader
func (s *Service) Length(ctx context.Context, traderID string) (int64, error) {
	length, err := s.client.LLen(ctx, queueKey(traderID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue length: %w", err)
	}
	return length, nil
}
