// Package cart keeps each customer's cart in a Redis hash of
// medicine id -> quantity. Carts are not stored in the relational database.
package cart

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "cart:user:"

var ErrInvalidQuantity = errors.New("quantity must be positive")

// Store is a Redis backed cart repository
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func key(userID uint) string {
	return keyPrefix + strconv.FormatUint(uint64(userID), 10)
}

// Add increments the quantity of a line and returns the new quantity
func (s *Store) Add(ctx context.Context, userID, medicineID uint, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, ErrInvalidQuantity
	}
	k := key(userID)
	pipe := s.rdb.TxPipeline()
	incr := pipe.HIncrBy(ctx, k, strconv.FormatUint(uint64(medicineID), 10), int64(quantity))
	pipe.Expire(ctx, k, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to add to cart of user %d: %w", userID, err)
	}
	return int(incr.Val()), nil
}

// Set overwrites the quantity of a line; zero removes it
func (s *Store) Set(ctx context.Context, userID, medicineID uint, quantity int) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}
	if quantity == 0 {
		return s.Remove(ctx, userID, medicineID)
	}
	k := key(userID)
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, k, strconv.FormatUint(uint64(medicineID), 10), quantity)
	pipe.Expire(ctx, k, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set cart line for user %d: %w", userID, err)
	}
	return nil
}

// Remove drops one line
func (s *Store) Remove(ctx context.Context, userID, medicineID uint) error {
	if err := s.rdb.HDel(ctx, key(userID), strconv.FormatUint(uint64(medicineID), 10)).Err(); err != nil {
		return fmt.Errorf("failed to remove cart line for user %d: %w", userID, err)
	}
	return nil
}

// Items returns the cart; an absent cart is empty
func (s *Store) Items(ctx context.Context, userID uint) (map[uint]int, error) {
	raw, err := s.rdb.HGetAll(ctx, key(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read cart of user %d: %w", userID, err)
	}
	items := make(map[uint]int, len(raw))
	for field, value := range raw {
		id, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			continue
		}
		qty, err := strconv.Atoi(value)
		if err != nil || qty <= 0 {
			continue
		}
		items[uint(id)] = qty
	}
	return items, nil
}

// Clear deletes the whole cart
func (s *Store) Clear(ctx context.Context, userID uint) error {
	if err := s.rdb.Del(ctx, key(userID)).Err(); err != nil {
		return fmt.Errorf("failed to clear cart of user %d: %w", userID, err)
	}
	return nil
}
