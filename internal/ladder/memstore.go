package ladder

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// memStore is an in-memory Store used by tests and by dev runs without a
// database. Update works on a copy of the state and swaps it in on
// success, so a failed unit of work leaves nothing behind. The mutex
// serializes whole transactions, which also serializes rank mutation.
type memStore struct {
	mu              sync.Mutex
	nextPlayerID    int64
	nextChallengeID int64
	players         map[int64]*Player
	challenges      map[int64]*Challenge
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() Store {
	return &memStore{
		players:    make(map[int64]*Player),
		challenges: make(map[int64]*Challenge),
	}
}

func (s *memStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := s.begin()
	if err := fn(tx); err != nil {
		return err
	}
	s.nextPlayerID = tx.nextPlayerID
	s.nextChallengeID = tx.nextChallengeID
	s.players = tx.players
	s.challenges = tx.challenges
	return nil
}

func (s *memStore) View(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.begin())
}

func (s *memStore) Close() error { return nil }

func (s *memStore) begin() *memTx {
	tx := &memTx{
		nextPlayerID:    s.nextPlayerID,
		nextChallengeID: s.nextChallengeID,
		players:         make(map[int64]*Player, len(s.players)),
		challenges:      make(map[int64]*Challenge, len(s.challenges)),
	}
	for id, p := range s.players {
		cp := *p
		tx.players[id] = &cp
	}
	for id, c := range s.challenges {
		cc := *c
		tx.challenges[id] = &cc
	}
	return tx
}

type memTx struct {
	nextPlayerID    int64
	nextChallengeID int64
	players         map[int64]*Player
	challenges      map[int64]*Challenge
}

func (t *memTx) CreatePlayer(ctx context.Context, p *Player) error {
	t.nextPlayerID++
	p.ID = t.nextPlayerID
	if p.Rank == 0 {
		p.Rank = len(t.players) + 1
	}
	cp := *p
	t.players[p.ID] = &cp
	return nil
}

func (t *memTx) PlayerByID(ctx context.Context, id int64) (*Player, error) {
	p, ok := t.players[id]
	if !ok {
		return nil, ErrNoRow
	}
	cp := *p
	return &cp, nil
}

func (t *memTx) PlayerByGamertag(ctx context.Context, tag string) (*Player, error) {
	return t.findPlayer(func(p *Player) bool { return strings.EqualFold(p.Gamertag, tag) })
}

func (t *memTx) PlayerByDiscord(ctx context.Context, handle string) (*Player, error) {
	return t.findPlayer(func(p *Player) bool { return strings.EqualFold(p.Discord, handle) })
}

func (t *memTx) findPlayer(match func(*Player) bool) (*Player, error) {
	for _, p := range t.players {
		if match(p) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNoRow
}

func (t *memTx) SavePlayer(ctx context.Context, p *Player) error {
	if _, ok := t.players[p.ID]; !ok {
		return ErrNoRow
	}
	cp := *p
	t.players[p.ID] = &cp
	return nil
}

func (t *memTx) ShiftRanks(ctx context.Context, from, to int) error {
	for _, p := range t.players {
		if p.Rank >= from && p.Rank < to {
			p.Rank++
		}
	}
	return nil
}

func (t *memTx) PlayersByRank(ctx context.Context) ([]*Player, error) {
	out := make([]*Player, 0, len(t.players))
	for _, p := range t.players {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out, nil
}

func (t *memTx) CreateChallenge(ctx context.Context, c *Challenge) error {
	t.nextChallengeID++
	c.ID = t.nextChallengeID
	cc := *c
	t.challenges[c.ID] = &cc
	return nil
}

func (t *memTx) LatestChallengeForPair(ctx context.Context, a, b int64, completedOnly bool) (*Challenge, error) {
	return t.latest(completedOnly, func(c *Challenge) bool {
		return (c.P1 == a && c.P2 == b) || (c.P1 == b && c.P2 == a)
	})
}

func (t *memTx) LatestChallengeForPlayer(ctx context.Context, id int64, completedOnly bool) (*Challenge, error) {
	return t.latest(completedOnly, func(c *Challenge) bool {
		return c.P1 == id || c.P2 == id
	})
}

func (t *memTx) latest(completedOnly bool, match func(*Challenge) bool) (*Challenge, error) {
	var best *Challenge
	for _, c := range t.challenges {
		if !match(c) {
			continue
		}
		if completedOnly {
			if c.State != StateCompleted {
				continue
			}
		} else if c.State != StatePending {
			continue
		}
		if best == nil || c.Date.After(best.Date) || (c.Date.Equal(best.Date) && c.ID > best.ID) {
			best = c
		}
	}
	if best == nil {
		return nil, ErrNoRow
	}
	cc := *best
	return &cc, nil
}

func (t *memTx) PendingBefore(ctx context.Context, cutoff time.Time) ([]*Challenge, error) {
	var out []*Challenge
	for _, c := range t.challenges {
		if c.State == StatePending && c.Date.Before(cutoff) {
			cc := *c
			out = append(out, &cc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) SaveChallenge(ctx context.Context, c *Challenge) error {
	if _, ok := t.challenges[c.ID]; !ok {
		return ErrNoRow
	}
	cc := *c
	t.challenges[c.ID] = &cc
	return nil
}
