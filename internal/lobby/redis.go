package lobby

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/realmchat/chat-engine/internal/chat"
)

// Key layout, for a lobby of kind K with instance id I:
//
//	lobby:K:index        sorted set of instance ids scored by creation time
//	lobby:K:I            hash {name, host, status}
//	lobby:K:I:members    hash player id -> name
//	lobby:K:I:order      list of player ids in join order
const LobbyPrefix = "lobby:"

// RedisStore shares lobbies between chat nodes.
type RedisStore struct {
	rdb         *redis.Client
	joinScript  *redis.Script
	leaveScript *redis.Script
	now         func() time.Time
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{
		rdb:         rdb,
		joinScript:  redis.NewScript(joinLua),
		leaveScript: redis.NewScript(leaveLua),
		now:         time.Now,
	}
}

func indexKey(kind Kind) string {
	return fmt.Sprintf("%s%d:index", LobbyPrefix, kind)
}

func gameKey(kind Kind, id string) string {
	return fmt.Sprintf("%s%d:%s", LobbyPrefix, kind, id)
}

func (s *RedisStore) List(ctx context.Context, kind Kind) ([]Game, error) {
	ids, err := s.rdb.ZRange(ctx, indexKey(kind), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lobby: list: %w", err)
	}

	games := make([]Game, 0, len(ids))
	for _, id := range ids {
		g, ok, err := s.get(ctx, kind, id)
		if err != nil {
			return nil, err
		}
		if ok {
			games = append(games, g)
		}
	}
	return games, nil
}

func (s *RedisStore) get(ctx context.Context, kind Kind, id string) (Game, bool, error) {
	key := gameKey(kind, id)

	pipe := s.rdb.Pipeline()
	fields := pipe.HGetAll(ctx, key)
	names := pipe.HGetAll(ctx, key+":members")
	order := pipe.LRange(ctx, key+":order", 0, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return Game{}, false, fmt.Errorf("lobby: get %s: %w", id, err)
	}

	f := fields.Val()
	if len(f) == 0 {
		return Game{}, false, nil
	}

	host, _ := strconv.ParseUint(f["host"], 10, 64)
	status, _ := strconv.ParseUint(f["status"], 10, 8)
	g := Game{
		Kind:       kind,
		InstanceID: id,
		Name:       f["name"],
		Host:       chat.PlayerID(host),
		Status:     Status(status),
	}
	for _, raw := range order.Val() {
		pid, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			continue
		}
		g.Members = append(g.Members, Member{ID: chat.PlayerID(pid), Name: names.Val()[raw]})
	}
	return g, true, nil
}

func (s *RedisStore) Create(ctx context.Context, kind Kind, name string, host Member) (Game, error) {
	id := uuid.NewString()
	key := gameKey(kind, id)
	hostID := strconv.FormatUint(uint64(host.ID), 10)

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"name":   name,
		"host":   hostID,
		"status": int(StatusWaitQueue),
	})
	pipe.HSet(ctx, key+":members", hostID, host.Name)
	pipe.RPush(ctx, key+":order", hostID)
	pipe.ZAdd(ctx, indexKey(kind), redis.Z{Score: float64(s.now().UnixNano()), Member: id})
	if _, err := pipe.Exec(ctx); err != nil {
		return Game{}, fmt.Errorf("lobby: create: %w", err)
	}

	return Game{
		Kind:       kind,
		InstanceID: id,
		Name:       name,
		Host:       host.ID,
		Status:     StatusWaitQueue,
		Members:    []Member{host},
	}, nil
}

// FindByName returns the oldest lobby of kind with exactly this name.
func (s *RedisStore) FindByName(ctx context.Context, kind Kind, name string) (Game, bool, error) {
	games, err := s.List(ctx, kind)
	if err != nil {
		return Game{}, false, err
	}
	for _, g := range games {
		if g.Name == name {
			return g, true, nil
		}
	}
	return Game{}, false, nil
}

// Join atomically adds member unless they are already in the lobby.
func (s *RedisStore) Join(ctx context.Context, kind Kind, instanceID string, member Member) error {
	key := gameKey(kind, instanceID)
	pid := strconv.FormatUint(uint64(member.ID), 10)

	result, err := s.joinScript.Run(ctx, s.rdb,
		[]string{key, key + ":members", key + ":order"}, pid, member.Name).Int()
	if err != nil {
		return fmt.Errorf("lobby: join: %w", err)
	}
	switch result {
	case -1:
		return ErrNotFound
	case 0:
		return ErrAlreadyMember
	}
	return nil
}

// Leave removes id from every lobby of kind. A lobby left without members
// is dropped.
func (s *RedisStore) Leave(ctx context.Context, kind Kind, id chat.PlayerID) error {
	index := indexKey(kind)
	ids, err := s.rdb.ZRange(ctx, index, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("lobby: leave: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}
	pid := strconv.FormatUint(uint64(id), 10)

	// EVAL rather than EVALSHA: a pipelined NOSCRIPT cannot be retried.
	pipe := s.rdb.Pipeline()
	for _, instance := range ids {
		key := gameKey(kind, instance)
		s.leaveScript.Eval(ctx, pipe, []string{key, key + ":members", key + ":order", index}, pid, instance)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("lobby: leave: %w", err)
	}
	return nil
}

func (s *RedisStore) SetStatus(ctx context.Context, kind Kind, instanceID string, status Status) error {
	key := gameKey(kind, instanceID)
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("lobby: set status: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	if err := s.rdb.HSet(ctx, key, "status", int(status)).Err(); err != nil {
		return fmt.Errorf("lobby: set status: %w", err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, kind Kind, instanceID string) error {
	key := gameKey(kind, instanceID)

	pipe := s.rdb.TxPipeline()
	removed := pipe.ZRem(ctx, indexKey(kind), instanceID)
	pipe.Del(ctx, key, key+":members", key+":order")
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("lobby: remove: %w", err)
	}
	if removed.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

// joinLua adds a member to a lobby if the lobby exists and the player is not
// already in it. Returns 1 on join, 0 when already a member, -1 when the
// lobby is gone.
const joinLua = `
local key = KEYS[1]
local members = KEYS[2]
local order = KEYS[3]
local player_id = ARGV[1]
local name = ARGV[2]

if redis.call('EXISTS', key) == 0 then return -1 end
if redis.call('HEXISTS', members, player_id) == 1 then return 0 end

redis.call('HSET', members, player_id, name)
redis.call('RPUSH', order, player_id)
return 1
`

// leaveLua removes a player from one lobby and drops the lobby once its
// last member is gone. Returns 1 when the lobby was dropped.
const leaveLua = `
local key = KEYS[1]
local members = KEYS[2]
local order = KEYS[3]
local index = KEYS[4]
local player_id = ARGV[1]
local instance = ARGV[2]

redis.call('HDEL', members, player_id)
redis.call('LREM', order, 0, player_id)
if redis.call('HLEN', members) > 0 then return 0 end

redis.call('DEL', key, members, order)
redis.call('ZREM', index, instance)
return 1
`
