package ladder

import (
	"strconv"
	"strings"
	"time"
)

// ChallengeWindow is the business deadline for playing, completing or
// resetting a challenge, counted from its creation date.
const ChallengeWindow = 7 * 24 * time.Hour

// Player is one entry on the ladder. Rank 1 is the top; active players
// always occupy exactly the ranks 1..N.
type Player struct {
	ID           int64
	Gamertag     string
	Discord      string
	Rank         int
	Wins         int
	Losses       int
	Challenged   bool
	TimeoutUntil time.Time
}

// ChallengeState is the explicit lifecycle state of a challenge.
type ChallengeState string

const (
	StatePending   ChallengeState = "PENDING"
	StateCompleted ChallengeState = "COMPLETED"
	StateReset     ChallengeState = "RESET"
)

// Challenge records one challenge between a challenger (P1) and a
// defender (P2). Win and score tallies are only meaningful once State
// is COMPLETED; Winner is one of P1 or P2.
type Challenge struct {
	ID      int64
	P1      int64
	P2      int64
	Date    time.Time
	State   ChallengeState
	P1Wins  int
	P2Wins  int
	P1Score int
	P2Score int
	Winner  int64
}

// Deadline returns the moment after which the challenge counts as expired.
func (c *Challenge) Deadline() time.Time { return c.Date.Add(ChallengeWindow) }

// Ref identifies a player either by database id or by a human-readable
// handle. Chat commands arrive with discord handles; the website uses
// gamertags.
type Ref struct {
	ID        int64
	Name      string
	IsDiscord bool
}

// ByID references a player by database id.
func ByID(id int64) Ref { return Ref{ID: id} }

// ByGamertag references a player by gamertag.
func ByGamertag(name string) Ref { return Ref{Name: strings.TrimSpace(name)} }

// ByDiscord references a player by full discord handle.
func ByDiscord(name string) Ref { return Ref{Name: strings.TrimSpace(name), IsDiscord: true} }

// String returns the handle or id for log and error messages.
func (r Ref) String() string {
	if r.Name != "" {
		return r.Name
	}
	return "#" + strconv.FormatInt(r.ID, 10)
}
