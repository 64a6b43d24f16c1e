package ladder

import (
	"context"
	"time"
)

// Clock supplies the current time. Injected so tests can sit exactly on
// deadline and timeout boundaries.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Tx is the set of store operations available inside one unit of work.
// Implementations must serialize read-check-write per player: two
// transactions touching the same player row must not interleave, so a
// concurrent create can never see a stale challenged flag.
type Tx interface {
	// CreatePlayer persists a new player and fills in its ID. A zero Rank
	// places the player at the bottom of the ladder (rank N+1).
	CreatePlayer(ctx context.Context, p *Player) error
	// PlayerByID loads a player snapshot, locking the row for the
	// remainder of the transaction.
	PlayerByID(ctx context.Context, id int64) (*Player, error)
	PlayerByGamertag(ctx context.Context, tag string) (*Player, error)
	PlayerByDiscord(ctx context.Context, handle string) (*Player, error)
	SavePlayer(ctx context.Context, p *Player) error
	// ShiftRanks increments the rank of every player whose rank is in the
	// half-open interval [from, to).
	ShiftRanks(ctx context.Context, from, to int) error
	// PlayersByRank lists all players ordered by ascending rank.
	PlayersByRank(ctx context.Context) ([]*Player, error)

	// CreateChallenge persists a new challenge and fills in its ID.
	CreateChallenge(ctx context.Context, c *Challenge) error
	// LatestChallengeForPair returns the most recent challenge between the
	// unordered pair, restricted to completed ones when completedOnly is
	// set, otherwise to pending ones. Reset challenges are never returned.
	LatestChallengeForPair(ctx context.Context, a, b int64, completedOnly bool) (*Challenge, error)
	// LatestChallengeForPlayer is LatestChallengeForPair with only one side fixed.
	LatestChallengeForPlayer(ctx context.Context, id int64, completedOnly bool) (*Challenge, error)
	// PendingBefore lists pending challenges created strictly before cutoff.
	PendingBefore(ctx context.Context, cutoff time.Time) ([]*Challenge, error)
	SaveChallenge(ctx context.Context, c *Challenge) error
}

// Store runs units of work against durable state. Update runs fn inside
// a transaction: either every mutation fn performed commits, or none do.
// No two rank-mutating transactions may commit concurrently.
type Store interface {
	Update(ctx context.Context, fn func(tx Tx) error) error
	// View runs fn read-only. Mutations made through a View transaction
	// are not persisted.
	View(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// ErrNoRow is returned by Tx lookups when nothing matches. The lifecycle
// layer converts it into a KindNotFound error with a proper subject.
var ErrNoRow = Errf(KindNotFound, "no matching row")
