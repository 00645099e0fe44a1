package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"placement/internal/auth"
)

const (
	redisKeyPrefix    = "directory:user:"
	redisScanCount    = 200
	redisMaxTxRetries = 3
)

// RedisRepository stores each record as a JSON document under directory:user:<email>.
type RedisRepository struct {
	client *redis.Client
}

// NewRedisRepository creates a new RedisRepository.
func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{client: client}
}

func redisKey(email string) string {
	return redisKeyPrefix + email
}

// Get looks up a record by email.
func (r *RedisRepository) Get(ctx context.Context, email string) (User, error) {
	raw, err := r.client.Get(ctx, redisKey(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return decodeUser(raw)
}

// Create stores the record with SETNX so only the first concurrent writer wins.
func (r *RedisRepository) Create(ctx context.Context, user User) (User, error) {
	payload, err := json.Marshal(user)
	if err != nil {
		return User{}, fmt.Errorf("encode user: %w", err)
	}

	ok, err := r.client.SetNX(ctx, redisKey(user.Email), payload, 0).Result()
	if err != nil {
		return User{}, err
	}
	if !ok {
		return User{}, ErrAlreadyExists
	}
	return user, nil
}

// UpdateLogin records a sign-in.
func (r *RedisRepository) UpdateLogin(ctx context.Context, email, avatarURL string, at time.Time) (User, error) {
	return r.mutate(ctx, email, func(u *User) {
		u.AvatarURL = avatarURL
		u.LastLoginAt = at
	})
}

// UpdateProfile replaces the profile fields and completeness flag.
func (r *RedisRepository) UpdateProfile(ctx context.Context, email string, profile Profile, complete bool, at time.Time) (User, error) {
	return r.mutate(ctx, email, func(u *User) {
		u.Profile = profile
		u.IsProfileComplete = complete
		u.UpdatedAt = at
	})
}

// UpdatePlacement sets the placed flag.
func (r *RedisRepository) UpdatePlacement(ctx context.Context, email string, placed bool, at time.Time) (User, error) {
	return r.mutate(ctx, email, func(u *User) {
		u.IsPlaced = placed
		u.UpdatedAt = at
	})
}

// List scans every record and returns those with the given role ordered by email.
func (r *RedisRepository) List(ctx context.Context, role auth.Role) ([]User, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, redisKeyPrefix+"*", redisScanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return []User{}, nil
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	users := make([]User, 0, len(values))
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			// Deleted between SCAN and MGET.
			continue
		}
		user, err := decodeUser([]byte(raw))
		if err != nil {
			return nil, err
		}
		if user.Role == role {
			users = append(users, user)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	return users, nil
}

// mutate applies a read-modify-write under WATCH, retrying when another writer interleaves.
func (r *RedisRepository) mutate(ctx context.Context, email string, apply func(*User)) (User, error) {
	key := redisKey(email)

	var updated User
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return err
		}

		user, err := decodeUser(raw)
		if err != nil {
			return err
		}
		apply(&user)

		payload, err := json.Marshal(user)
		if err != nil {
			return fmt.Errorf("encode user: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		if err != nil {
			return err
		}
		updated = user
		return nil
	}

	for range redisMaxTxRetries {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return User{}, err
	}
	return User{}, fmt.Errorf("update %s: transaction retries exhausted", email)
}

func decodeUser(raw []byte) (User, error) {
	var user User
	if err := json.Unmarshal(raw, &user); err != nil {
		return User{}, fmt.Errorf("decode user: %w", err)
	}
	return user, nil
}
