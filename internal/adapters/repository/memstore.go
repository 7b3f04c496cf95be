package repository

import (
	"cmp"
	"context"
	"fmt"
	"hash/fnv"
	"slices"
	"sync"
	"time"

	"github.com/okian/fantasylive/internal/domain/dedupe"
	"github.com/okian/fantasylive/internal/domain/model"
	"github.com/okian/fantasylive/pkg/metrics"
)

const defaultShardCount = 32

// shard is one lock stripe. A writer holds mu for the whole mutation, so
// two updates for keys in the same stripe never run concurrently.
type shard[T any] struct {
	mu    sync.RWMutex
	items map[string]*T
}

type shards[T any] []*shard[T]

func newShards[T any](n int) shards[T] {
	s := make(shards[T], n)
	for i := range s {
		s[i] = &shard[T]{items: make(map[string]*T)}
	}
	return s
}

func (s shards[T]) of(key string) *shard[T] {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return s[h.Sum32()%uint32(len(s))]
}

// MemoryStore is an in-memory Store with striped per-key locks. Stored
// values are never modified in place; Apply swaps in new copies.
// Lock order is game stripe, then player stripe.
type MemoryStore struct {
	shardCount int
	games      shards[model.GameState]
	players    shards[model.PlayerState]
	seen       dedupe.Deduper
}

// NewMemoryStore creates a store. Without WithDeduper it remembers the last
// 10,000 update ids.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{shardCount: defaultShardCount}
	for _, opt := range opts {
		opt(s)
	}
	if s.seen == nil {
		s.seen = dedupe.NewInMemoryDeduper()
	}
	s.games = newShards[model.GameState](s.shardCount)
	s.players = newShards[model.PlayerState](s.shardCount)
	return s
}

// Apply runs m against copies of the update's state and commits them.
func (s *MemoryStore) Apply(ctx context.Context, u model.ClassifiedUpdate, m Mutation) (d Delta, err error) { //nolint:gocritic // hugeParam
	if u.PlayerID == "" && u.GameID == "" {
		metrics.RecordErrorByComponent("repository", "invalid_key")
		return Delta{}, fmt.Errorf("apply %s: %w", u.ID, ErrInvalidKey)
	}
	if s.seen.SeenAndRecord(ctx, u.ID) {
		metrics.RecordUpdateDuplicate()
		return Delta{}, fmt.Errorf("apply %s: %w", u.ID, ErrDuplicate)
	}

	var gs *shard[model.GameState]
	var ps *shard[model.PlayerState]
	if u.GameID != "" {
		gs = s.games.of(u.GameID)
		gs.mu.Lock()
		defer gs.mu.Unlock()
	}
	if u.PlayerID != "" {
		ps = s.players.of(u.PlayerID)
		ps.mu.Lock()
		defer ps.mu.Unlock()
	}

	// A failed or panicking mutation leaves the id free for a retry.
	committed := false
	defer func() {
		if !committed {
			s.seen.Unrecord(ctx, u.ID)
		}
	}()

	var t Target
	d.UpdateID = u.ID
	if gs != nil {
		d.PrevGame = gs.items[u.GameID]
		t.Game = d.PrevGame.Clone()
		if t.Game == nil {
			t.Game = &model.GameState{ID: u.GameID, Status: model.GamePregame}
		}
	}
	if ps != nil {
		d.PrevPlayer = ps.items[u.PlayerID]
		t.Player = d.PrevPlayer.Clone()
		if t.Player == nil {
			t.Player = model.NewPlayerState(u.PlayerID)
		}
	}

	if err := m(&t); err != nil {
		return Delta{}, fmt.Errorf("apply %s: %w", u.ID, err)
	}

	if gs != nil {
		gs.items[u.GameID] = t.Game
		d.Game = t.Game.Clone()
	}
	if ps != nil {
		ps.items[u.PlayerID] = t.Player
		d.Player = t.Player.Clone()
	}
	committed = true
	return d, nil
}

// Player returns a copy of a player's state.
func (s *MemoryStore) Player(_ context.Context, id string) (*model.PlayerState, error) {
	sh := s.players.of(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	p, ok := sh.items[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return nil, fmt.Errorf("player %q: %w", id, ErrNotFound)
	}
	return p.Clone(), nil
}

// Players returns copies of every player ordered by id.
func (s *MemoryStore) Players(_ context.Context) []*model.PlayerState {
	out := collect(s.players, func(*model.PlayerState) bool { return true }, (*model.PlayerState).Clone)
	slices.SortFunc(out, func(a, b *model.PlayerState) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Game returns a copy of a game's state.
func (s *MemoryStore) Game(_ context.Context, id string) (*model.GameState, error) {
	sh := s.games.of(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	g, ok := sh.items[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return nil, fmt.Errorf("game %q: %w", id, ErrNotFound)
	}
	return g.Clone(), nil
}

// Games returns copies of every game ordered by id.
func (s *MemoryStore) Games(_ context.Context) []*model.GameState {
	return sortedGames(s.games, func(*model.GameState) bool { return true })
}

// ActiveGames returns games that are live or at halftime.
func (s *MemoryStore) ActiveGames(_ context.Context) []*model.GameState {
	return sortedGames(s.games, func(g *model.GameState) bool { return g.Status.Active() })
}

func sortedGames(s shards[model.GameState], keep func(*model.GameState) bool) []*model.GameState {
	out := collect(s, keep, (*model.GameState).Clone)
	slices.SortFunc(out, func(a, b *model.GameState) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// PruneFinalGames drops final games last updated before olderThan.
func (s *MemoryStore) PruneFinalGames(_ context.Context, olderThan time.Time) int {
	pruned := 0
	for _, sh := range s.games {
		sh.mu.Lock()
		for id, g := range sh.items {
			if g.Status == model.GameFinal && g.UpdatedAt.Before(olderThan) {
				delete(sh.items, id)
				pruned++
			}
		}
		sh.mu.Unlock()
	}
	return pruned
}

// Count returns the number of tracked players and games.
func (s *MemoryStore) Count(_ context.Context) (players, games int) {
	for _, sh := range s.players {
		sh.mu.RLock()
		players += len(sh.items)
		sh.mu.RUnlock()
	}
	for _, sh := range s.games {
		sh.mu.RLock()
		games += len(sh.items)
		sh.mu.RUnlock()
	}
	metrics.UpdateTrackedState(players, games)
	return players, games
}

func collect[T any](s shards[T], keep func(*T) bool, clone func(*T) *T) []*T {
	var out []*T
	for _, sh := range s {
		sh.mu.RLock()
		for _, v := range sh.items {
			if keep(v) {
				out = append(out, clone(v))
			}
		}
		sh.mu.RUnlock()
	}
	return out
}
