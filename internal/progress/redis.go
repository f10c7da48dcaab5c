package progress

import (
	"context"
	"fmt"
	"sort"

	backend "github.com/redis/go-redis/v9"
)

// Redis keeps one set of completed question ids per learner
type Redis struct {
	client *backend.Client
	prefix string
}

// NewRedis connects to addr
func NewRedis(addr string, db int) *Redis {
	return NewRedisFromClient(backend.NewClient(&backend.Options{
		Addr: addr,
		DB:   db,
	}))
}

// NewRedisFromClient wraps an existing client
func NewRedisFromClient(client *backend.Client) *Redis {
	return &Redis{client: client, prefix: "codeprep:progress:"}
}

func (r *Redis) key(learner string) string {
	return r.prefix + learner
}

func (r *Redis) Completed(ctx context.Context, learner string) ([]string, error) {
	if err := validate(learner); err != nil {
		return nil, err
	}
	ids, err := r.client.SMembers(ctx, r.key(learner)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read progress from redis: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *Redis) Mark(ctx context.Context, learner, questionID string, done bool) error {
	if err := validate(learner, questionID); err != nil {
		return err
	}
	var err error
	if done {
		err = r.client.SAdd(ctx, r.key(learner), questionID).Err()
	} else {
		err = r.client.SRem(ctx, r.key(learner), questionID).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to write progress to redis: %w", err)
	}
	return nil
}

func (r *Redis) Reset(ctx context.Context, learner string) error {
	if err := validate(learner); err != nil {
		return err
	}
	if err := r.client.Del(ctx, r.key(learner)).Err(); err != nil {
		return fmt.Errorf("failed to reset progress in redis: %w", err)
	}
	return nil
}

// Close closes the redis client
func (r *Redis) Close() error {
	return r.client.Close()
}
