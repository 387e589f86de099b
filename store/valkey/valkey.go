// Package valkey implements store.Store on valkey-go. Sequences are sorted sets
// scored by rank, exactly like the redis package, so both backends can share data.
package valkey

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/unkn0wn-root/filtercache/store"
)

var ErrNilClient = errors.New("valkey store: nil client")

// swapScript returns the previous value (nil when absent) and writes the new one.
// ARGV[2] is the TTL in milliseconds; 0 keeps the key without expiry.
var swapScript = valkey.NewLuaScript(`
local prev = redis.call('GET', KEYS[1])
local ttl = tonumber(ARGV[2])
if ttl > 0 then
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ttl)
else
  redis.call('SET', KEYS[1], ARGV[1])
end
return prev`)

type Store struct {
	client      valkey.Client
	closeClient bool
}

var (
	_ store.Store  = (*Store)(nil)
	_ store.Pinger = (*Store)(nil)
)

type Config struct {
	Client      valkey.Client
	CloseClient bool
}

func New(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Store{client: cfg.Client, closeClient: cfg.CloseClient}, nil
}

// Dial connects to addr, pings it and returns a store that owns the client.
func Dial(ctx context.Context, addr, password string, db int) (*Store, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:  []string{addr},
		Password:     password,
		SelectDB:     db,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect %s: %w", addr, err)
	}
	s := &Store{client: client, closeClient: true}
	if err := s.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("valkey ping %s: %w", addr, err)
	}
	return s, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var cmd valkey.Completed
	if ttl > 0 {
		cmd = s.client.B().Set().Key(key).Value(valkey.BinaryString(value)).Px(ttl).Build()
	} else {
		cmd = s.client.B().Set().Key(key).Value(valkey.BinaryString(value)).Build()
	}
	return s.client.Do(ctx, cmd).Error()
}

func (s *Store) Swap(ctx context.Context, key string, value []byte, ttl time.Duration) ([]byte, bool, error) {
	ms := int64(0)
	if ttl > 0 {
		ms = ttl.Milliseconds()
	}
	res := swapScript.Exec(ctx, s.client, []string{key},
		[]string{valkey.BinaryString(value), strconv.FormatInt(ms, 10)})
	prev, err := res.AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return prev, true, nil
}

func (s *Store) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.Do(ctx, s.client.B().Del().Key(keys...).Build()).Error()
}

func (s *Store) Append(ctx context.Context, key string, from int64, members [][]byte, ttl time.Duration) error {
	if len(members) == 0 {
		return nil
	}
	zadd := s.client.B().Zadd().Key(key).ScoreMember()
	for i, m := range members {
		zadd = zadd.ScoreMember(float64(from+int64(i)), valkey.BinaryString(m))
	}
	cmds := valkey.Commands{
		s.client.B().Multi().Build(),
		zadd.Build(),
	}
	if ttl > 0 {
		cmds = append(cmds, s.client.B().Pexpire().Key(key).Milliseconds(ttl.Milliseconds()).Build())
	}
	cmds = append(cmds, s.client.B().Exec().Build())
	for _, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Range(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	cmd := s.client.B().Zrange().Key(key).
		Min(strconv.FormatInt(start, 10)).
		Max(strconv.FormatInt(stop, 10)).
		Build()
	vals, err := s.client.Do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(vals))
	for i, v := range vals {
		out[i] = []byte(v)
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Do(ctx, s.client.B().Ping().Build()).Error()
}

func (s *Store) Close(context.Context) error {
	if s.closeClient {
		s.client.Close()
	}
	return nil
}
