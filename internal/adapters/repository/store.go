// Package repository holds live player and game state.
package repository

import (
	"context"
	"time"

	"github.com/okian/fantasylive/internal/domain/model"
)

// Target holds the working copies a mutation may change. Game is nil when
// the update carries no game id; Player is nil when it carries no player id.
type Target struct {
	Game   *model.GameState
	Player *model.PlayerState
}

// Mutation changes the working copies in place. Returning an error discards
// them and leaves stored state untouched.
type Mutation func(t *Target) error

// Delta is the before and after of one applied update. Prev values are nil
// for keys seen for the first time.
type Delta struct {
	UpdateID   string
	Game       *model.GameState
	PrevGame   *model.GameState
	Player     *model.PlayerState
	PrevPlayer *model.PlayerState
}

// Store provides read/write access to live state.
type Store interface {
	// Apply runs m against copies of the update's game and player and
	// commits them on success. An update id is applied at most once;
	// repeats return ErrDuplicate.
	Apply(ctx context.Context, u model.ClassifiedUpdate, m Mutation) (Delta, error)

	// Player returns a copy of a player's state or ErrNotFound.
	Player(ctx context.Context, id string) (*model.PlayerState, error)
	// Players returns copies of every player ordered by id.
	Players(ctx context.Context) []*model.PlayerState

	// Game returns a copy of a game's state or ErrNotFound.
	Game(ctx context.Context, id string) (*model.GameState, error)
	// Games returns copies of every game ordered by id.
	Games(ctx context.Context) []*model.GameState
	// ActiveGames returns games that are live or at halftime.
	ActiveGames(ctx context.Context) []*model.GameState
	// PruneFinalGames drops final games last updated before olderThan.
	PruneFinalGames(ctx context.Context, olderThan time.Time) int

	// Count returns the number of tracked players and games.
	Count(ctx context.Context) (players, games int)
}
