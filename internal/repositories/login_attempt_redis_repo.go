package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisLoginAttemptRepository keeps attempts in sorted sets scored by
// occurred_at in unix microseconds, which a float64 score holds exactly. The
// member carries nanoseconds; members in the microsecond containing a window
// or purge edge are decoded and compared exactly.
//
// Every record lives in three sets: one per identity, one per credential key
// and a global index used for age purges.
// The member is the JSON-encoded record, so the same record is identical in
// all three sets and the identity-OR-credential count is a set union.
type RedisLoginAttemptRepository struct {
	redis     redis.UniversalClient
	prefix    string
	keyExpiry time.Duration
}

// redisAttempt is the member encoding
type redisAttempt struct {
	ID            string `json:"id"`
	Identity      string `json:"i"`
	CredentialKey string `json:"c"`
	OccurredAt    int64  `json:"t"` // unix nanoseconds
}

// NewRedisLoginAttemptRepository creates a Redis-backed attempt store. keyExpiry
// bounds how long an idle per-identity or per-credential set survives.
func NewRedisLoginAttemptRepository(client redis.UniversalClient, prefix string, keyExpiry time.Duration) *RedisLoginAttemptRepository {
	if prefix == "" {
		prefix = "gk"
	}
	return &RedisLoginAttemptRepository{
		redis:     client,
		prefix:    prefix,
		keyExpiry: keyExpiry,
	}
}

func (r *RedisLoginAttemptRepository) identityKey(identity string) string {
	return r.prefix + ":attempts:identity:" + identity
}

func (r *RedisLoginAttemptRepository) credentialKey(credential string) string {
	return r.prefix + ":attempts:credential:" + credential
}

func (r *RedisLoginAttemptRepository) indexKey() string {
	return r.prefix + ":attempts:all"
}

func scoreOf(t time.Time) float64 {
	return float64(t.UnixMicro())
}

func scoreArg(t time.Time) string {
	return strconv.FormatInt(t.UnixMicro(), 10)
}

func decodeMember(member string) (*redisAttempt, error) {
	var a redisAttempt
	if err := json.Unmarshal([]byte(member), &a); err != nil {
		return nil, fmt.Errorf("failed to decode attempt member: %w", err)
	}
	return &a, nil
}

// InsertAttempt records one failed attempt
func (r *RedisLoginAttemptRepository) InsertAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	member, err := json.Marshal(redisAttempt{
		ID:            uuid.NewString(),
		Identity:      attempt.Identity,
		CredentialKey: attempt.CredentialKey,
		OccurredAt:    attempt.OccurredAt.UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode attempt: %w", err)
	}

	z := redis.Z{Score: scoreOf(attempt.OccurredAt), Member: string(member)}
	idKey := r.identityKey(attempt.Identity)
	credKey := r.credentialKey(attempt.CredentialKey)

	_, err = r.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, idKey, z)
		pipe.ZAdd(ctx, credKey, z)
		pipe.ZAdd(ctx, r.indexKey(), z)
		if r.keyExpiry > 0 {
			pipe.Expire(ctx, idKey, r.keyExpiry)
			pipe.Expire(ctx, credKey, r.keyExpiry)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to insert login attempt: %w", err)
	}
	return nil
}

// CountAttempts returns the number of attempts matching the query window
func (r *RedisLoginAttemptRepository) CountAttempts(ctx context.Context, q models.AttemptQuery) (int, error) {
	if q.Match == models.MatchCredential {
		count, err := r.countSince(ctx, r.credentialKey(q.CredentialKey), q.Since)
		if err != nil {
			return 0, fmt.Errorf("failed to count login attempts (%s): %w", q.Match, err)
		}
		return count, nil
	}

	members, err := r.windowMembers(ctx, q)
	if err != nil {
		return 0, err
	}
	return len(members), nil
}

// countSince counts members strictly after the edge microsecond with ZCOUNT
// and filters the edge microsecond itself by nanosecond
func (r *RedisLoginAttemptRepository) countSince(ctx context.Context, key string, since time.Time) (int, error) {
	edge := scoreArg(since)

	var above *redis.IntCmd
	var atEdge *redis.StringSliceCmd
	_, err := r.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		above = pipe.ZCount(ctx, key, "("+edge, "+inf")
		atEdge = pipe.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: edge, Max: edge})
		return nil
	})
	if err != nil {
		return 0, err
	}

	return int(above.Val()) + len(notBefore(atEdge.Val(), since)), nil
}

// notBefore keeps the members that occurred at or after t
func notBefore(members []string, t time.Time) []string {
	var kept []string
	for _, m := range members {
		a, err := decodeMember(m)
		if err != nil {
			continue
		}
		if a.OccurredAt >= t.UnixNano() {
			kept = append(kept, m)
		}
	}
	return kept
}

// windowMembers returns the distinct members of both sets inside the window
func (r *RedisLoginAttemptRepository) windowMembers(ctx context.Context, q models.AttemptQuery) (map[string]struct{}, error) {
	rng := &redis.ZRangeBy{Min: scoreArg(q.Since), Max: "+inf"}

	var byIdentity, byCredential *redis.StringSliceCmd
	_, err := r.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		byIdentity = pipe.ZRangeByScore(ctx, r.identityKey(q.Identity), rng)
		byCredential = pipe.ZRangeByScore(ctx, r.credentialKey(q.CredentialKey), rng)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count login attempts (%s): %w", q.Match, err)
	}

	members := make(map[string]struct{})
	for _, m := range notBefore(byIdentity.Val(), q.Since) {
		members[m] = struct{}{}
	}
	for _, m := range notBefore(byCredential.Val(), q.Since) {
		members[m] = struct{}{}
	}
	return members, nil
}

// LatestAttempt returns the most recent matching occurred_at, or nil when there is none
func (r *RedisLoginAttemptRepository) LatestAttempt(ctx context.Context, q models.AttemptQuery) (*time.Time, error) {
	keys := []string{r.credentialKey(q.CredentialKey)}
	if q.Match == models.MatchIdentityOrCredential {
		keys = append(keys, r.identityKey(q.Identity))
	}

	var latest *time.Time
	for _, key := range keys {
		t, err := r.latestIn(ctx, key, q.Since)
		if err != nil {
			return nil, fmt.Errorf("failed to get latest login attempt: %w", err)
		}
		if t != nil && (latest == nil || t.After(*latest)) {
			latest = t
		}
	}

	return latest, nil
}

// latestIn reads every member sharing the highest score in the window, since
// several attempts can fall in the same microsecond
func (r *RedisLoginAttemptRepository) latestIn(ctx context.Context, key string, since time.Time) (*time.Time, error) {
	top, err := r.redis.ZRevRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min:   scoreArg(since),
		Max:   "+inf",
		Count: 1,
	}).Result()
	if err != nil || len(top) == 0 {
		return nil, err
	}

	score := strconv.FormatFloat(top[0].Score, 'f', -1, 64)
	members, err := r.redis.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: score, Max: score}).Result()
	if err != nil {
		return nil, err
	}

	var latest int64
	found := false
	for _, m := range notBefore(members, since) {
		a, err := decodeMember(m)
		if err != nil {
			continue
		}
		if !found || a.OccurredAt > latest {
			latest = a.OccurredAt
			found = true
		}
	}
	if !found {
		return nil, nil
	}

	t := time.Unix(0, latest)
	return &t, nil
}

// DeleteAttempts removes attempts for the exact identity AND credential pair
func (r *RedisLoginAttemptRepository) DeleteAttempts(ctx context.Context, identity, credentialKey string) (int64, error) {
	credKey := r.credentialKey(credentialKey)

	members, err := r.redis.ZRange(ctx, credKey, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to delete login attempts: %w", err)
	}

	matched := make([]any, 0, len(members))
	for _, m := range members {
		a, err := decodeMember(m)
		if err != nil {
			continue
		}
		if a.Identity == identity {
			matched = append(matched, m)
		}
	}
	if len(matched) == 0 {
		return 0, nil
	}

	_, err = r.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, credKey, matched...)
		pipe.ZRem(ctx, r.identityKey(identity), matched...)
		pipe.ZRem(ctx, r.indexKey(), matched...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete login attempts: %w", err)
	}

	return int64(len(matched)), nil
}

// PurgeOlderThan removes attempts that occurred before cutoff from every set
func (r *RedisLoginAttemptRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	// the edge microsecond is included and filtered by nanosecond below
	members, err := r.redis.ZRangeByScore(ctx, r.indexKey(), &redis.ZRangeBy{Min: "-inf", Max: scoreArg(cutoff)}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to purge login attempts: %w", err)
	}

	expired := make([]*redisAttempt, 0, len(members))
	expiredMembers := make([]string, 0, len(members))
	for _, m := range members {
		a, err := decodeMember(m)
		if err != nil {
			continue
		}
		if a.OccurredAt < cutoff.UnixNano() {
			expired = append(expired, a)
			expiredMembers = append(expiredMembers, m)
		}
	}
	if len(expired) == 0 {
		return 0, nil
	}

	_, err = r.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, a := range expired {
			m := expiredMembers[i]
			pipe.ZRem(ctx, r.identityKey(a.Identity), m)
			pipe.ZRem(ctx, r.credentialKey(a.CredentialKey), m)
			pipe.ZRem(ctx, r.indexKey(), m)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to purge login attempts: %w", err)
	}

	return int64(len(expired)), nil
}

// HealthCheck reports whether Redis answers PING
func (r *RedisLoginAttemptRepository) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := r.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
