package ladder

import (
	"strconv"
	"strings"
	"time"
)

// SanityCheck verifies that a challenge between challenger and defender
// is legal against the supplied snapshots. Pure; no store access.
//
// allowChallenged skips the challenged-flag check, used when validating
// a challenge that is itself in flight (completion, forfeit).
func SanityCheck(now time.Time, challenger, defender *Player, allowChallenged bool) error {
	if !allowChallenged {
		if challenger.Challenged {
			return PlayerErrf(KindRuleViolation, challenger.Gamertag, "%s is already challenged", challenger.Gamertag)
		}
		if defender.Challenged {
			return PlayerErrf(KindRuleViolation, defender.Gamertag, "%s is already challenged", defender.Gamertag)
		}
	}

	// Challenging upward only: the challenger must hold the numerically
	// worse (greater) rank.
	if challenger.Rank < defender.Rank {
		return PlayerErrf(KindRuleViolation, challenger.Gamertag,
			"the rank of %s is higher than that of %s", challenger.Gamertag, defender.Gamertag)
	}

	// Equal ranks break the total order. Store corruption, not misuse.
	if challenger.Rank == defender.Rank {
		return PlayerErrf(KindConsistency, challenger.Gamertag,
			"players %s and %s hold the same rank %d", challenger.Gamertag, defender.Gamertag, challenger.Rank)
	}

	if challenger.TimeoutUntil.After(now) {
		return PlayerErrf(KindRuleViolation, challenger.Gamertag,
			"the timeout counter of %s is still active", challenger.Gamertag)
	}
	return nil
}

// Tally is the accumulated outcome of a set of played games.
type Tally struct {
	P1Wins  int
	P2Wins  int
	P1Score int
	P2Score int
}

// Swapped returns the tally with the sides exchanged.
func (t Tally) Swapped() Tally {
	return Tally{P1Wins: t.P2Wins, P2Wins: t.P1Wins, P1Score: t.P2Score, P2Score: t.P1Score}
}

// ParseMatchResults parses a match results string like "2-1 5-2 0-3":
// whitespace-separated games, each "<p1 goals>-<p2 goals>". A game with
// the higher score on one side counts as a win for that side; an equal
// game counts for neither but its goals still accumulate. A draw in game
// wins (including zero games) rejects the whole result.
func ParseMatchResults(text string) (Tally, error) {
	var t Tally
	for _, game := range strings.Fields(text) {
		scores := strings.Split(game, "-")
		if len(scores) != 2 {
			return Tally{}, Errf(KindValidation, "unable to parse game result %q", game)
		}
		p1, err1 := strconv.Atoi(scores[0])
		p2, err2 := strconv.Atoi(scores[1])
		if err1 != nil || err2 != nil {
			return Tally{}, Errf(KindValidation, "unable to parse game result %q", game)
		}
		switch {
		case p1 > p2:
			t.P1Wins++
		case p2 > p1:
			t.P2Wins++
		}
		t.P1Score += p1
		t.P2Score += p2
	}
	if t.P1Wins == t.P2Wins {
		return Tally{}, Errf(KindValidation, "draws are not allowed")
	}
	return t, nil
}
