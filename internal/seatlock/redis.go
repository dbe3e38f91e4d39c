package seatlock

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"bus-ticketing/internal/models"
)

// RedisStore backs the seat lock manager with SetNX + TTL. Expiry is
// delegated to Redis: a lock past its TTL simply stops existing, so
// anyone may reacquire the seat.
type RedisStore struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{Client: client, TTL: ttl}
}

func lockKey(tripID, seatNumber string) string {
	return fmt.Sprintf("seat_lock:%s:%s", tripID, seatNumber)
}

func tripIndexKey(tripID string) string {
	return "trip_locks:" + tripID
}

func connIndexKey(connectionID string) string {
	return "conn_locks:" + connectionID
}

func (s *RedisStore) Lock(ctx context.Context, tripID string, seatNumbers []string, holderID, connectionID string) ([]string, error) {
	// First pass: find every seat held by a different holder so the
	// caller gets the full conflict list, not just the first.
	var conflicts []string
	for _, seat := range seatNumbers {
		val, err := s.Client.Get(ctx, lockKey(tripID, seat)).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		var existing models.SeatLock
		if jsonErr := json.Unmarshal([]byte(val), &existing); jsonErr != nil || existing.HolderID != holderID {
			conflicts = append(conflicts, seat)
		}
	}
	if len(conflicts) > 0 {
		return conflicts, nil
	}

	now := time.Now()
	locked := []string{}
	for _, seat := range seatNumbers {
		lock := models.SeatLock{
			TripID:       tripID,
			SeatNumber:   seat,
			HolderID:     holderID,
			ConnectionID: connectionID,
			AcquiredAt:   now,
		}
		payload, err := json.Marshal(lock)
		if err != nil {
			return nil, err
		}

		ok, err := s.Client.SetNX(ctx, lockKey(tripID, seat), payload, s.TTL).Result()
		if err != nil {
			s.rollback(ctx, tripID, locked, holderID)
			return nil, err
		}
		if !ok {
			// The key already exists. If this holder owns it, refresh
			// the TTL and carry on; otherwise we raced with another
			// batch since the first pass.
			val, getErr := s.Client.Get(ctx, lockKey(tripID, seat)).Result()
			if getErr == nil {
				var existing models.SeatLock
				if json.Unmarshal([]byte(val), &existing) == nil && existing.HolderID == holderID {
					if err := s.Client.Set(ctx, lockKey(tripID, seat), payload, s.TTL).Err(); err != nil {
						s.rollback(ctx, tripID, locked, holderID)
						return nil, err
					}
					locked = append(locked, seat)
					continue
				}
			}
			s.rollback(ctx, tripID, locked, holderID)
			return []string{seat}, nil
		}
		locked = append(locked, seat)
	}

	// Index entries are best effort: a stale member is filtered out on
	// read when its lock key no longer exists.
	for _, seat := range locked {
		s.Client.SAdd(ctx, tripIndexKey(tripID), seat)
		s.Client.SAdd(ctx, connIndexKey(connectionID), tripID+":"+seat)
	}
	s.Client.Expire(ctx, tripIndexKey(tripID), s.TTL*2)
	s.Client.Expire(ctx, connIndexKey(connectionID), s.TTL*2)

	return nil, nil
}

func (s *RedisStore) rollback(ctx context.Context, tripID string, seats []string, holderID string) {
	for _, seat := range seats {
		_, _ = s.Unlock(ctx, tripID, []string{seat}, holderID)
	}
}

func (s *RedisStore) Unlock(ctx context.Context, tripID string, seatNumbers []string, holderID string) ([]string, error) {
	var released []string
	var firstErr error
	for _, seat := range seatNumbers {
		key := lockKey(tripID, seat)
		val, err := s.Client.Get(ctx, key).Result()
		if err == redis.Nil {
			continue // already expired or never locked
		}
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		var lock models.SeatLock
		if err := json.Unmarshal([]byte(val), &lock); err != nil || lock.HolderID != holderID {
			continue // owned by someone else, leave it alone
		}

		if _, err := s.Client.Del(ctx, key).Result(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.Client.SRem(ctx, tripIndexKey(tripID), seat)
		s.Client.SRem(ctx, connIndexKey(lock.ConnectionID), tripID+":"+seat)
		released = append(released, seat)
	}
	return released, firstErr
}

func (s *RedisStore) Snapshot(ctx context.Context, tripID string) ([]models.SeatLock, error) {
	seats, err := s.Client.SMembers(ctx, tripIndexKey(tripID)).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}

	locks := []models.SeatLock{}
	for _, seat := range seats {
		val, err := s.Client.Get(ctx, lockKey(tripID, seat)).Result()
		if err == redis.Nil {
			// Lock expired, drop the stale index member.
			s.Client.SRem(ctx, tripIndexKey(tripID), seat)
			continue
		}
		if err != nil {
			return nil, err
		}
		var lock models.SeatLock
		if err := json.Unmarshal([]byte(val), &lock); err != nil {
			continue
		}
		locks = append(locks, lock)
	}
	return locks, nil
}

func (s *RedisStore) ReleaseConnection(ctx context.Context, connectionID string) (map[string][]string, error) {
	members, err := s.Client.SMembers(ctx, connIndexKey(connectionID)).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}

	releasedByTrip := map[string][]string{}
	for _, member := range members {
		tripID, seat, ok := splitTripSeat(member)
		if !ok {
			continue
		}

		key := lockKey(tripID, seat)
		val, err := s.Client.Get(ctx, key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return releasedByTrip, err
		}

		var lock models.SeatLock
		if err := json.Unmarshal([]byte(val), &lock); err != nil || lock.ConnectionID != connectionID {
			continue
		}

		if _, err := s.Client.Del(ctx, key).Result(); err != nil {
			return releasedByTrip, err
		}
		s.Client.SRem(ctx, tripIndexKey(tripID), seat)
		releasedByTrip[tripID] = append(releasedByTrip[tripID], seat)
	}

	s.Client.Del(ctx, connIndexKey(connectionID))
	return releasedByTrip, nil
}

func splitTripSeat(member string) (tripID, seat string, ok bool) {
	for i := 0; i < len(member); i++ {
		if member[i] == ':' {
			return member[:i], member[i+1:], true
		}
	}
	return "", "", false
}
