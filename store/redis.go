package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"sketchrelay/game"
)

// Redis is a SessionStore backed by a redis server. Sessions live in a hash
// per code, stroke documents in a string key per player, change
// notifications go over pub/sub, and presence is a TTL lease key the client
// heartbeats; a member whose lease disappears gets swept out of the roster
// by whichever client notices first.
type Redis struct {
	pool *redis.Pool

	// LeaseTTL bounds how long a vanished player can linger in the roster.
	LeaseTTL time.Duration
	// SessionTTL is refreshed on every write so abandoned sessions expire.
	SessionTTL time.Duration
}

func NewRedis(addr string) *Redis {
	return &Redis{
		pool: &redis.Pool{
			MaxIdle:     4,
			IdleTimeout: 240 * time.Second,
			DialContext: func(ctx context.Context) (redis.Conn, error) {
				return redis.DialContext(ctx, "tcp", addr)
			},
		},
		LeaseTTL:   10 * time.Second,
		SessionTTL: 24 * time.Hour,
	}
}

func sessionKey(code string) string       { return "session:" + code }
func strokesKey(code, name string) string { return "session:" + code + ":strokes:" + name }
func leaseKey(code, name string) string   { return "session:" + code + ":lease:" + name }
func announcedKey(code string) string     { return "session:" + code + ":announced" }
func changesKey(code string) string       { return "session:" + code + ":changes" }

// Conditional writes run as Lua so no concurrent writer can interleave
// between the read and the write (the join/advance races of the design).
// Return values: 1 applied, 0 condition failed, -1 session missing.

var addPlayerScript = redis.NewScript(2, `
if redis.call('EXISTS', KEYS[1]) == 0 then return -1 end
local rev = tonumber(redis.call('HGET', KEYS[1], 'rev') or '0')
if rev ~= tonumber(ARGV[3]) then return 0 end
local players = cjson.decode(redis.call('HGET', KEYS[1], 'players') or '{}')
players[ARGV[1]] = tonumber(ARGV[2])
redis.call('HSET', KEYS[1], 'players', cjson.encode(players), 'rev', rev + 1)
redis.call('EXPIRE', KEYS[1], ARGV[4])
redis.call('PUBLISH', KEYS[2], 'roster')
return 1
`)

var removePlayerScript = redis.NewScript(3, `
if redis.call('EXISTS', KEYS[1]) == 0 then return -1 end
local players = cjson.decode(redis.call('HGET', KEYS[1], 'players') or '{}')
if players[ARGV[1]] == nil then return 1 end
players[ARGV[1]] = nil
local rev = tonumber(redis.call('HGET', KEYS[1], 'rev') or '0')
if next(players) == nil then
	redis.call('HSET', KEYS[1], 'players', '{}', 'rev', rev + 1)
else
	redis.call('HSET', KEYS[1], 'players', cjson.encode(players), 'rev', rev + 1)
end
redis.call('DEL', KEYS[3])
redis.call('PUBLISH', KEYS[2], 'roster')
return 1
`)

var advanceRoundScript = redis.NewScript(2, `
if redis.call('EXISTS', KEYS[1]) == 0 then return -1 end
local round = tonumber(redis.call('HGET', KEYS[1], 'round') or '0')
if round ~= tonumber(ARGV[1]) then return 0 end
redis.call('HSET', KEYS[1], 'round', round + 1, 'word', ARGV[2])
redis.call('PUBLISH', KEYS[2], 'round')
return 1
`)

var releaseLeaseScript = redis.NewScript(1, `
if redis.call('GET', KEYS[1]) == ARGV[1] then
	redis.call('DEL', KEYS[1])
	return 1
end
return 0
`)

func scriptErr(reply interface{}, err error) error {
	if err != nil {
		return err
	}
	n, ok := reply.(int64)
	if !ok {
		return fmt.Errorf("unexpected script reply %v", reply)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return ErrConflict
	default:
		return ErrNotFound
	}
}

func (r *Redis) Create(ctx context.Context, s *game.Session) error {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	players, err := json.Marshal(s.Players)
	if err != nil {
		return err
	}

	ok, err := redis.Int(conn.Do("HSETNX", sessionKey(s.Code), "code", s.Code))
	if err != nil {
		return err
	}
	if ok == 0 {
		return ErrExists
	}
	_, err = conn.Do("HSET", sessionKey(s.Code),
		"round", s.Round,
		"word", s.Word,
		"players", string(players),
		"rev", s.Rev,
	)
	if err != nil {
		return err
	}
	_, err = conn.Do("EXPIRE", sessionKey(s.Code), int(r.SessionTTL.Seconds()))
	return err
}

func (r *Redis) Load(ctx context.Context, code string) (*game.Session, error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return loadSession(conn, code)
}

func loadSession(conn redis.Conn, code string) (*game.Session, error) {
	fields, err := redis.StringMap(conn.Do("HGETALL", sessionKey(code)))
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	s := &game.Session{Code: code, Players: map[string]int{}}
	s.Round, _ = strconv.Atoi(fields["round"])
	s.Rev, _ = strconv.ParseInt(fields["rev"], 10, 64)
	s.Word = fields["word"]
	if p := fields["players"]; p != "" && p != "{}" {
		if err := json.Unmarshal([]byte(p), &s.Players); err != nil {
			return nil, fmt.Errorf("corrupt roster for %s: %w", code, err)
		}
	}
	return s, nil
}

func (r *Redis) AddPlayer(ctx context.Context, code, name string, index int, rev int64) error {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	return scriptErr(addPlayerScript.Do(conn,
		sessionKey(code), changesKey(code),
		name, index, rev, int(r.SessionTTL.Seconds()),
	))
}

func (r *Redis) RemovePlayer(ctx context.Context, code, name string) error {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	err = scriptErr(removePlayerScript.Do(conn,
		sessionKey(code), changesKey(code), strokesKey(code, name),
		name,
	))
	if err == ErrNotFound {
		// Removing a player from a vanished session is still a removal.
		return nil
	}
	return err
}

func (r *Redis) AdvanceRound(ctx context.Context, code string, from int, word string) error {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	return scriptErr(advanceRoundScript.Do(conn,
		sessionKey(code), changesKey(code),
		from, word,
	))
}

func (r *Redis) PutStrokes(ctx context.Context, code, name string, doc []byte) error {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Do("SET", strokesKey(code, name), doc, "EX", int(r.SessionTTL.Seconds()))
	return err
}

func (r *Redis) GetStrokes(ctx context.Context, code, name string) ([]byte, error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	doc, err := redis.Bytes(conn.Do("GET", strokesKey(code, name)))
	if err == redis.ErrNil {
		return nil, nil
	}
	return doc, err
}

func (r *Redis) Watch(ctx context.Context, code string) (<-chan game.Session, error) {
	first, err := r.Load(ctx, code)
	if err != nil {
		return nil, err
	}

	ch := make(chan game.Session, 16)
	ch <- *first

	subConn, err := r.pool.GetContext(ctx)
	if err != nil {
		return nil, err
	}
	psc := redis.PubSubConn{Conn: subConn}
	if err := psc.Subscribe(changesKey(code)); err != nil {
		subConn.Close()
		return nil, err
	}

	// Receive blocks, so it runs in its own goroutine and is unblocked by
	// closing the connection on ctx teardown.
	signals := make(chan struct{}, 1)
	go func() {
		for {
			switch psc.Receive().(type) {
			case redis.Message:
				select {
				case signals <- struct{}{}:
				default:
				}
			case error:
				close(signals)
				return
			}
		}
	}()

	go func() {
		defer close(ch)
		defer subConn.Close()

		// The sweep ticker doubles as a safety net for missed publishes.
		ticker := time.NewTicker(r.LeaseTTL)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-signals:
				if !ok {
					return
				}
			case <-ticker.C:
				r.sweep(ctx, code)
			}

			s, err := r.Load(ctx, code)
			if err != nil {
				if err == ErrNotFound {
					return
				}
				zap.L().Warn("session reload failed", zap.String("code", code), zap.Error(err))
				continue
			}
			select {
			case ch <- *s:
			default:
			}
		}
	}()

	return ch, nil
}

// sweep removes roster entries whose presence lease has expired. Best
// effort: any client watching the session may be the one to do it.
func (r *Redis) sweep(ctx context.Context, code string) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return
	}
	defer conn.Close()

	names, err := redis.Strings(conn.Do("SMEMBERS", announcedKey(code)))
	if err != nil {
		return
	}
	for _, name := range names {
		alive, err := redis.Int(conn.Do("EXISTS", leaseKey(code, name)))
		if err != nil || alive == 1 {
			continue
		}
		if err := r.RemovePlayer(ctx, code, name); err != nil {
			zap.L().Warn("lease sweep failed",
				zap.String("code", code), zap.String("player", name), zap.Error(err))
			continue
		}
		conn.Do("SREM", announcedKey(code), name)
	}
}

func (r *Redis) Announce(ctx context.Context, code, name string) (func(), error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	// The token keeps a rejoined player's fresh lease safe from a stale
	// release of the old one.
	token := uuid.NewString()
	ttl := int(r.LeaseTTL.Seconds())
	if _, err := conn.Do("SET", leaseKey(code, name), token, "EX", ttl); err != nil {
		return nil, err
	}
	if _, err := conn.Do("SADD", announcedKey(code), name); err != nil {
		return nil, err
	}

	stop := make(chan struct{})
	var once sync.Once
	release := func() {
		once.Do(func() {
			close(stop)
			conn := r.pool.Get()
			defer conn.Close()
			releaseLeaseScript.Do(conn, leaseKey(code, name), token)
			conn.Do("SREM", announcedKey(code), name)
			if err := r.RemovePlayer(context.Background(), code, name); err != nil {
				zap.L().Warn("leave cleanup failed",
					zap.String("code", code), zap.String("player", name), zap.Error(err))
			}
		})
	}

	go func() {
		ticker := time.NewTicker(r.LeaseTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				release()
				return
			case <-ticker.C:
				conn := r.pool.Get()
				// XX: only refresh a lease that still exists; never
				// resurrect one another client already swept.
				conn.Do("SET", leaseKey(code, name), token, "EX", ttl, "XX")
				conn.Close()
			}
		}
	}()

	return release, nil
}
