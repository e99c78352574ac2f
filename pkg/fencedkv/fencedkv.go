// Package fencedkv wraps a shared KV store (Redis) used only for
// ephemeral session state (C2). Every mutation for a meeting carries a
// meeting_id and a presented generation; operations are implemented as
// Redis Lua scripts so read-check-write is atomic.
package fencedkv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Error taxonomy. The wrapper never logs the connection URL (it may carry
// credentials), so these are the only diagnostics callers get.
var (
	ErrFencedOut       = errors.New("fencedkv: fenced out")
	ErrReplayed        = errors.New("fencedkv: nonce replayed")
	ErrStoreUnavailable = errors.New("fencedkv: store unavailable")
)

// DefaultMeetingTTL bounds how long an abandoned meeting's generation and
// state keys live before self-cleaning.
const DefaultMeetingTTL = 24 * time.Hour

var bumpGenerationScript = redis.NewScript(`
local gen = redis.call('INCR', KEYS[1])
redis.call('EXPIRE', KEYS[1], ARGV[1])
return gen
`)

var writeIfFreshScript = redis.NewScript(`
local stored = tonumber(redis.call('GET', KEYS[1]) or "0")
local presented = tonumber(ARGV[1])
if presented < stored then
  return "fenced_out"
end
redis.call('HSET', KEYS[2], ARGV[2], ARGV[3])
redis.call('EXPIRE', KEYS[2], ARGV[4])
return "ok"
`)

var consumeNonceScript = redis.NewScript(`
local ok = redis.call('SET', KEYS[1], '1', 'NX', 'EX', ARGV[1])
if ok then
  return "ok"
else
  return "replayed"
end
`)

// Client is the fenced KV client's public contract (spec §4.2).
type Client interface {
	BumpGeneration(ctx context.Context, meetingID string) (int64, error)
	WriteIfFresh(ctx context.Context, meetingID string, generation int64, field, value string) error
	ConsumeNonce(ctx context.Context, nonce string, ttl time.Duration) error
	CurrentGeneration(ctx context.Context, meetingID string) (int64, error)
}

// RedisClient implements Client over go-redis.
type RedisClient struct {
	rdb        *redis.Client
	meetingTTL time.Duration
}

// New wraps rdb. meetingTTL is applied to generation/state keys on every
// write so abandoned meetings self-clean; zero uses DefaultMeetingTTL.
func New(rdb *redis.Client, meetingTTL time.Duration) *RedisClient {
	if meetingTTL <= 0 {
		meetingTTL = DefaultMeetingTTL
	}
	return &RedisClient{rdb: rdb, meetingTTL: meetingTTL}
}

func generationKey(meetingID string) string { return fmt.Sprintf("meeting:%s:generation", meetingID) }
func stateKey(meetingID string) string      { return fmt.Sprintf("meeting:%s:state", meetingID) }
func nonceKey(nonce string) string          { return fmt.Sprintf("nonce:%s", nonce) }

// BumpGeneration monotonically increments the meeting's fencing
// generation and returns the new value.
func (c *RedisClient) BumpGeneration(ctx context.Context, meetingID string) (int64, error) {
	ttlSeconds := int(c.meetingTTL.Seconds())
	res, err := bumpGenerationScript.Run(ctx, c.rdb, []string{generationKey(meetingID)}, ttlSeconds).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	gen, ok := res.(int64)
	if !ok {
		return 0, fmt.Errorf("%w: unexpected script result type %T", ErrStoreUnavailable, res)
	}
	return gen, nil
}

// CurrentGeneration reads the stored generation without bumping it.
// Returns 0 if no generation has been bumped yet for this meeting.
func (c *RedisClient) CurrentGeneration(ctx context.Context, meetingID string) (int64, error) {
	val, err := c.rdb.Get(ctx, generationKey(meetingID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return val, nil
}

// WriteIfFresh writes field=value into the meeting's state hash iff the
// presented generation is >= the stored one; otherwise rejects with
// ErrFencedOut.
func (c *RedisClient) WriteIfFresh(ctx context.Context, meetingID string, generation int64, field, value string) error {
	ttlSeconds := int(c.meetingTTL.Seconds())
	res, err := writeIfFreshScript.Run(ctx, c.rdb,
		[]string{generationKey(meetingID), stateKey(meetingID)},
		generation, field, value, ttlSeconds,
	).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	switch res {
	case "ok":
		return nil
	case "fenced_out":
		return ErrFencedOut
	default:
		return fmt.Errorf("%w: unexpected script result %v", ErrStoreUnavailable, res)
	}
}

// ConsumeNonce sets the nonce with ttl iff it was absent; returns
// ErrReplayed if it was already present.
func (c *RedisClient) ConsumeNonce(ctx context.Context, nonce string, ttl time.Duration) error {
	res, err := consumeNonceScript.Run(ctx, c.rdb, []string{nonceKey(nonce)}, int(ttl.Seconds())).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	switch res {
	case "ok":
		return nil
	case "replayed":
		return ErrReplayed
	default:
		return fmt.Errorf("%w: unexpected script result %v", ErrStoreUnavailable, res)
	}
}
