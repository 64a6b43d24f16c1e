package ladder

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Erik-Lamers1/os3-rll-bot/internal/metrics"
	"github.com/Erik-Lamers1/os3-rll-bot/internal/obslog"
)

// Manager drives the challenge lifecycle: Pending -> Completed -> Reset.
// Every operation runs as one store transaction; a validation failure
// aborts before any mutation is written.
type Manager struct {
	store Store
	clock Clock
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the wall clock, for tests.
func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{store: store, clock: SystemClock{}}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// resolvePlayer loads the player a Ref points at, inside tx.
func resolvePlayer(ctx context.Context, tx Tx, ref Ref) (*Player, error) {
	var (
		p   *Player
		err error
	)
	switch {
	case ref.Name == "":
		p, err = tx.PlayerByID(ctx, ref.ID)
	case ref.IsDiscord:
		p, err = tx.PlayerByDiscord(ctx, ref.Name)
	default:
		p, err = tx.PlayerByGamertag(ctx, ref.Name)
	}
	if errors.Is(err, ErrNoRow) {
		return nil, PlayerErrf(KindNotFound, ref.String(), "player %s not found", ref.String())
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create opens a new challenge where challengerRef challenges defenderRef
// for their spot. Both players must be unchallenged, the challenger must
// be ranked strictly below the defender, and the challenger's timeout
// must have expired.
func (m *Manager) Create(ctx context.Context, challengerRef, defenderRef Ref) (*Challenge, error) {
	var created *Challenge
	err := m.store.Update(ctx, func(tx Tx) error {
		p1, err := resolvePlayer(ctx, tx, challengerRef)
		if err != nil {
			return err
		}
		p2, err := resolvePlayer(ctx, tx, defenderRef)
		if err != nil {
			return err
		}
		now := m.clock.Now()
		if err := SanityCheck(now, p1, p2, false); err != nil {
			return err
		}

		c := &Challenge{P1: p1.ID, P2: p2.ID, Date: now, State: StatePending}
		if err := tx.CreateChallenge(ctx, c); err != nil {
			return err
		}
		p1.Challenged = true
		p2.Challenged = true
		if err := tx.SavePlayer(ctx, p1); err != nil {
			return err
		}
		if err := tx.SavePlayer(ctx, p2); err != nil {
			return err
		}
		obslog.L().Info("challenge_create",
			zap.Int64("challenge_id", c.ID),
			zap.String("challenger", p1.Gamertag),
			zap.String("defender", p2.Gamertag),
			zap.Time("deadline", c.Deadline()),
		)
		created = c
		return nil
	})
	metrics.Operation("create", err)
	m.alertOnConsistency("create", err)
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Complete settles the latest pending challenge between the two players.
// results is the match results string (see ParseMatchResults); its first
// number in each game belongs to aRef's player regardless of which side
// originally issued the challenge. Returns the winner's player id.
//
// Unless allowExpired is set, a challenge past its deadline is rejected
// with KindExpired.
func (m *Manager) Complete(ctx context.Context, aRef, bRef Ref, results string, allowExpired bool) (int64, error) {
	tally, err := ParseMatchResults(results)
	if err != nil {
		metrics.Operation("complete", err)
		return 0, err
	}

	var winner int64
	err = m.store.Update(ctx, func(tx Tx) error {
		a, err := resolvePlayer(ctx, tx, aRef)
		if err != nil {
			return err
		}
		b, err := resolvePlayer(ctx, tx, bRef)
		if err != nil {
			return err
		}

		c, err := tx.LatestChallengeForPair(ctx, a.ID, b.ID, false)
		if errors.Is(err, ErrNoRow) {
			return Errf(KindNotFound, "no pending challenge between %s and %s", a.Gamertag, b.Gamertag)
		}
		if err != nil {
			return err
		}

		// Orient the arguments and the tally to the stored challenge:
		// challenger is c.P1, whichever argument that was.
		challenger, defender := a, b
		oriented := tally
		if c.P1 == b.ID {
			challenger, defender = b, a
			oriented = tally.Swapped()
		}

		now := m.clock.Now()
		if err := SanityCheck(now, challenger, defender, true); err != nil {
			return err
		}
		if now.After(c.Deadline()) && !allowExpired {
			return Errf(KindExpired, "challenge %d is older than 1 week", c.ID)
		}

		c.P1Wins, c.P2Wins = oriented.P1Wins, oriented.P2Wins
		c.P1Score, c.P2Score = oriented.P1Score, oriented.P2Score
		switch {
		case c.P1Wins > c.P2Wins:
			c.Winner = c.P1
		default:
			c.Winner = c.P2
		}
		c.State = StateCompleted

		if err := m.applyOutcome(ctx, tx, c, challenger, defender); err != nil {
			return err
		}
		if err := tx.SaveChallenge(ctx, c); err != nil {
			return err
		}
		winner = c.Winner
		obslog.L().Info("challenge_complete",
			zap.Int64("challenge_id", c.ID),
			zap.Int64("winner", c.Winner),
			zap.Ints("wins", []int{c.P1Wins, c.P2Wins}),
			zap.Ints("score", []int{c.P1Score, c.P2Score}),
		)
		return nil
	})
	metrics.Operation("complete", err)
	m.alertOnConsistency("complete", err)
	if err != nil {
		return 0, err
	}
	return winner, nil
}

// applyOutcome applies the rank and stat deltas of a decided challenge
// and clears both challenged flags. Runs inside the caller's transaction.
func (m *Manager) applyOutcome(ctx context.Context, tx Tx, c *Challenge, challenger, defender *Player) error {
	now := m.clock.Now()
	switch c.Winner {
	case challenger.ID:
		// Promote the challenger into the defender's spot; every player in
		// [defender.Rank, challenger.Rank) moves down one.
		if err := tx.ShiftRanks(ctx, defender.Rank, challenger.Rank); err != nil {
			return err
		}
		challenger.Rank, defender.Rank = defender.Rank, defender.Rank+1
		challenger.Wins++
		defender.Losses++
	case defender.ID:
		challenger.TimeoutUntil = now.Add(ChallengeWindow)
		challenger.Losses++
		defender.Wins++
	default:
		return Errf(KindConsistency,
			"winner id %d of challenge %d matches neither participant (%d, %d)",
			c.Winner, c.ID, c.P1, c.P2)
	}
	challenger.Challenged = false
	defender.Challenged = false
	if err := tx.SavePlayer(ctx, challenger); err != nil {
		return err
	}
	return tx.SavePlayer(ctx, defender)
}

// Reset voids the latest completed challenge between the two players,
// compensating both player records. The completed row is kept (audit
// trail) and marked RESET, and a fresh pending challenge with the
// original creation date takes its place: both players return to the
// challenged state, awaiting a fresh completion of the same match.
//
// A plain rank swap only undoes an adjacent-rank promotion; a block
// shift across intervening ranks is not restored. Deliberate: matches
// the established ladder behaviour, see DESIGN.md.
func (m *Manager) Reset(ctx context.Context, aRef, bRef Ref) error {
	err := m.store.Update(ctx, func(tx Tx) error {
		a, err := resolvePlayer(ctx, tx, aRef)
		if err != nil {
			return err
		}
		b, err := resolvePlayer(ctx, tx, bRef)
		if err != nil {
			return err
		}
		// A reset while a new challenge is in flight would double-compensate.
		if a.Challenged || b.Challenged {
			return Errf(KindRuleViolation,
				"one of the players is currently in an active challenge, previous challenge cannot be reset")
		}

		c, err := tx.LatestChallengeForPair(ctx, a.ID, b.ID, true)
		if errors.Is(err, ErrNoRow) {
			return Errf(KindNotFound, "no completed challenge between %s and %s", a.Gamertag, b.Gamertag)
		}
		if err != nil {
			return err
		}
		now := m.clock.Now()
		if now.After(c.Deadline()) {
			return Errf(KindExpired, "challenge %d is older than a week and cannot be reset", c.ID)
		}

		challenger, defender := a, b
		if c.P1 == b.ID {
			challenger, defender = b, a
		}

		switch c.Winner {
		case challenger.ID:
			challenger.Wins--
			defender.Losses--
			if challenger.Rank < defender.Rank {
				challenger.Rank, defender.Rank = defender.Rank, challenger.Rank
			}
		case defender.ID:
			defender.Wins--
			challenger.Losses--
			// The pre-loss timeout value is not retained; clear it instead of
			// restoring the exact original timestamp.
			if challenger.TimeoutUntil.After(now) {
				challenger.TimeoutUntil = now
			}
		default:
			return Errf(KindConsistency,
				"winner id %d of challenge %d matches neither participant (%d, %d)",
				c.Winner, c.ID, c.P1, c.P2)
		}

		c.State = StateReset
		if err := tx.SaveChallenge(ctx, c); err != nil {
			return err
		}
		// The match still has to be played: restore a pending challenge
		// with the original creation date so the deadline carries over.
		replay := &Challenge{P1: c.P1, P2: c.P2, Date: c.Date, State: StatePending}
		if err := tx.CreateChallenge(ctx, replay); err != nil {
			return err
		}
		challenger.Challenged = true
		defender.Challenged = true
		if err := tx.SavePlayer(ctx, challenger); err != nil {
			return err
		}
		if err := tx.SavePlayer(ctx, defender); err != nil {
			return err
		}
		obslog.L().Info("challenge_reset",
			zap.Int64("challenge_id", c.ID),
			zap.String("challenger", challenger.Gamertag),
			zap.String("defender", defender.Gamertag),
		)
		return nil
	})
	metrics.Operation("reset", err)
	m.alertOnConsistency("reset", err)
	return err
}

// ForfeitResult reports one challenge settled by the expiry sweep.
type ForfeitResult struct {
	Challenge  *Challenge
	Challenger *Player
	Defender   *Player
}

// ForfeitExpired settles every pending challenge past its deadline as an
// automatic defender loss: the defender failed to play within the week,
// so the challenger takes the spot. Each challenge is settled in its own
// transaction with the same discipline as Complete.
func (m *Manager) ForfeitExpired(ctx context.Context) ([]ForfeitResult, error) {
	var expired []*Challenge
	if err := m.store.View(ctx, func(tx Tx) error {
		var err error
		expired, err = tx.PendingBefore(ctx, m.clock.Now().Add(-ChallengeWindow))
		return err
	}); err != nil {
		return nil, err
	}

	var out []ForfeitResult
	for _, stale := range expired {
		id := stale.ID
		var res ForfeitResult
		err := m.store.Update(ctx, func(tx Tx) error {
			// Re-read inside the transaction; the challenge may have been
			// completed between the listing and now.
			c, err := tx.LatestChallengeForPair(ctx, stale.P1, stale.P2, false)
			if errors.Is(err, ErrNoRow) {
				return nil
			}
			if err != nil {
				return err
			}
			if c.ID != id || m.clock.Now().Before(c.Deadline()) {
				return nil
			}
			challenger, err := tx.PlayerByID(ctx, c.P1)
			if err != nil {
				return err
			}
			defender, err := tx.PlayerByID(ctx, c.P2)
			if err != nil {
				return err
			}
			c.Winner = challenger.ID
			c.State = StateCompleted
			if err := m.applyOutcome(ctx, tx, c, challenger, defender); err != nil {
				return err
			}
			if err := tx.SaveChallenge(ctx, c); err != nil {
				return err
			}
			res = ForfeitResult{Challenge: c, Challenger: challenger, Defender: defender}
			obslog.L().Info("challenge_forfeit",
				zap.Int64("challenge_id", c.ID),
				zap.String("challenger", challenger.Gamertag),
				zap.String("defender", defender.Gamertag),
			)
			return nil
		})
		metrics.Operation("forfeit", err)
		m.alertOnConsistency("forfeit", err)
		if err != nil {
			return out, err
		}
		if res.Challenge != nil {
			out = append(out, res)
		}
	}
	return out, nil
}

// alertOnConsistency logs consistency errors at highest severity; they
// signal a broken invariant, not ordinary misuse.
func (m *Manager) alertOnConsistency(op string, err error) {
	if IsKind(err, KindConsistency) {
		metrics.ConsistencyError(op)
		obslog.L().Error("ladder_consistency_error",
			zap.String("op", op),
			zap.Error(err),
		)
	}
}
