package ladder

import (
	"context"
	"errors"
	"time"
)

// Participant is a read-only player snapshot inside a ChallengeInfo.
type Participant struct {
	ID      int64
	Rank    int
	Name    string
	Discord string
}

// ChallengeInfo is the read-only projection of a player's most recent
// challenge, handed to the front end for announcement.
type ChallengeInfo struct {
	P1       Participant
	P2       Participant
	Deadline time.Time
}

// ChallengeInfo returns the most recent challenge involving the player,
// restricted to completed challenges when completedOnly is set. The
// NotFound message names the missing subject (player vs challenge) so
// callers get diagnostics from a single error kind.
func (m *Manager) ChallengeInfo(ctx context.Context, ref Ref, completedOnly bool) (*ChallengeInfo, error) {
	var info *ChallengeInfo
	err := m.store.View(ctx, func(tx Tx) error {
		p, err := resolvePlayer(ctx, tx, ref)
		if err != nil {
			return err
		}
		c, err := tx.LatestChallengeForPlayer(ctx, p.ID, completedOnly)
		if errors.Is(err, ErrNoRow) {
			return PlayerErrf(KindNotFound, p.Gamertag, "no challenge found for %s", p.Gamertag)
		}
		if err != nil {
			return err
		}
		p1, err := tx.PlayerByID(ctx, c.P1)
		if err != nil {
			return Wrap(KindNotFound, err, "challenge participant missing")
		}
		p2, err := tx.PlayerByID(ctx, c.P2)
		if err != nil {
			return Wrap(KindNotFound, err, "challenge participant missing")
		}
		info = &ChallengeInfo{
			P1:       Participant{ID: p1.ID, Rank: p1.Rank, Name: p1.Gamertag, Discord: p1.Discord},
			P2:       Participant{ID: p2.ID, Rank: p2.Rank, Name: p2.Gamertag, Discord: p2.Discord},
			Deadline: c.Deadline(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// Standings returns the ladder ordered by ascending rank.
func (m *Manager) Standings(ctx context.Context) ([]*Player, error) {
	var players []*Player
	err := m.store.View(ctx, func(tx Tx) error {
		var err error
		players, err = tx.PlayersByRank(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return players, nil
}
