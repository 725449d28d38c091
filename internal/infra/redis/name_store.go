package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const namesKey = "quiz:usernames"

// NameStore maps user ids to chat usernames in a single hash.
type NameStore struct {
	client *redis.Client
}

func NewNameStore(client *redis.Client) *NameStore {
	return &NameStore{client: client}
}

func (s *NameStore) SaveName(ctx context.Context, userID, name string) error {
	return s.client.HSet(ctx, namesKey, userID, name).Err()
}

func (s *NameStore) ResolveName(ctx context.Context, userID string) (string, bool, error) {
	name, err := s.client.HGet(ctx, namesKey, userID).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return name, true, nil
}
