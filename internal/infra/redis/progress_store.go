package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"chat-quiz-bot/internal/domain"
	"github.com/redis/go-redis/v9"
)

const progressUsersKey = "quiz:users"

// ProgressStore keeps user progress in Redis.
// Layout:
//
//	HSET quiz:progress:{userID} level {n} score {n}
//	SADD quiz:progress:{userID}:asked {itemID}...
//	ZADD NX quiz:users {first-write unix nanos} {userID}
type ProgressStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewProgressStore(client *redis.Client) *ProgressStore {
	return &ProgressStore{client: client, now: time.Now}
}

func (s *ProgressStore) Get(ctx context.Context, userID string) (domain.UserProgress, bool, error) {
	pipe := s.client.Pipeline()
	fields := pipe.HGetAll(ctx, progressKey(userID))
	asked := pipe.SMembers(ctx, askedKey(userID))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return domain.UserProgress{}, false, err
	}
	return decodeProgress(userID, fields.Val(), asked.Val())
}

func (s *ProgressStore) Put(ctx context.Context, userID string, progress domain.UserProgress) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, progressKey(userID), "level", progress.Level, "score", progress.Score)
		if len(progress.AskedHistory) > 0 {
			members := make([]interface{}, len(progress.AskedHistory))
			for i, id := range progress.AskedHistory {
				members[i] = id
			}
			pipe.SAdd(ctx, askedKey(userID), members...)
		}
		pipe.ZAddNX(ctx, progressUsersKey, redis.Z{Score: float64(s.now().UnixNano()), Member: userID})
		return nil
	})
	return err
}

func (s *ProgressStore) GetAll(ctx context.Context) ([]domain.UserProgress, error) {
	users, err := s.client.ZRange(ctx, progressUsersKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	fields := make([]*redis.MapStringStringCmd, len(users))
	asked := make([]*redis.StringSliceCmd, len(users))
	for i, userID := range users {
		fields[i] = pipe.HGetAll(ctx, progressKey(userID))
		asked[i] = pipe.SMembers(ctx, askedKey(userID))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	out := make([]domain.UserProgress, 0, len(users))
	for i, userID := range users {
		progress, found, err := decodeProgress(userID, fields[i].Val(), asked[i].Val())
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, progress)
		}
	}
	return out, nil
}

func decodeProgress(userID string, fields map[string]string, asked []string) (domain.UserProgress, bool, error) {
	if len(fields) == 0 {
		return domain.UserProgress{}, false, nil
	}
	level, err := strconv.Atoi(fields["level"])
	if err != nil {
		return domain.UserProgress{}, false, fmt.Errorf("decode level for %s: %w", userID, err)
	}
	score, err := strconv.Atoi(fields["score"])
	if err != nil {
		return domain.UserProgress{}, false, fmt.Errorf("decode score for %s: %w", userID, err)
	}
	sort.Strings(asked)
	return domain.UserProgress{
		UserID:       userID,
		Level:        level,
		Score:        score,
		AskedHistory: asked,
	}, true, nil
}

func progressKey(userID string) string {
	return "quiz:progress:" + userID
}

func askedKey(userID string) string {
	return "quiz:progress:" + userID + ":asked"
}
