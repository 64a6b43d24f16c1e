package ladder

import (
	"context"
	"fmt"
	"testing"
	"time"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

// newTestLadder seeds n players ranked 1..n as player1..playerN.
func newTestLadder(t *testing.T, n int) (*Manager, Store, *fakeClock) {
	t.Helper()
	store := NewMemoryStore()
	clk := &fakeClock{now: time.Date(2020, 5, 1, 12, 0, 0, 0, time.UTC)}
	err := store.Update(context.Background(), func(tx Tx) error {
		for i := 1; i <= n; i++ {
			p := &Player{
				Gamertag: fmt.Sprintf("player%d", i),
				Discord:  fmt.Sprintf("player%d#000%d", i, i),
			}
			if err := tx.CreatePlayer(context.Background(), p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed players: %v", err)
	}
	return NewManager(store, WithClock(clk)), store, clk
}

func getPlayer(t *testing.T, store Store, id int64) *Player {
	t.Helper()
	var p *Player
	err := store.View(context.Background(), func(tx Tx) error {
		var err error
		p, err = tx.PlayerByID(context.Background(), id)
		return err
	})
	if err != nil {
		t.Fatalf("load player %d: %v", id, err)
	}
	return p
}

// checkDenseRanks verifies ranks form exactly {1..N}.
func checkDenseRanks(t *testing.T, store Store) {
	t.Helper()
	var players []*Player
	err := store.View(context.Background(), func(tx Tx) error {
		var err error
		players, err = tx.PlayersByRank(context.Background())
		return err
	})
	if err != nil {
		t.Fatalf("list players: %v", err)
	}
	for i, p := range players {
		if p.Rank != i+1 {
			t.Fatalf("ranks not dense: position %d holds rank %d (%s)", i+1, p.Rank, p.Gamertag)
		}
	}
}

func TestCreateChallenge(t *testing.T) {
	mgr, store, _ := newTestLadder(t, 3)
	ctx := context.Background()

	c, err := mgr.Create(ctx, ByGamertag("player3"), ByGamertag("player2"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.State != StatePending {
		t.Fatalf("state = %s, want PENDING", c.State)
	}
	if got := c.Deadline(); !got.Equal(c.Date.Add(7 * 24 * time.Hour)) {
		t.Fatalf("deadline = %v, want date+7d", got)
	}
	if !getPlayer(t, store, c.P1).Challenged || !getPlayer(t, store, c.P2).Challenged {
		t.Fatalf("expected challenged flag set on both players")
	}
	checkDenseRanks(t, store)
}

func TestCreateByDiscordHandle(t *testing.T) {
	mgr, _, _ := newTestLadder(t, 2)
	if _, err := mgr.Create(context.Background(), ByDiscord("player2#0002"), ByDiscord("player1#0001")); err != nil {
		t.Fatalf("Create by discord handle: %v", err)
	}
}

func TestCreateRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("already challenged", func(t *testing.T) {
		mgr, _, _ := newTestLadder(t, 4)
		if _, err := mgr.Create(ctx, ByGamertag("player3"), ByGamertag("player2")); err != nil {
			t.Fatalf("first Create: %v", err)
		}
		if _, err := mgr.Create(ctx, ByGamertag("player4"), ByGamertag("player2")); !IsKind(err, KindRuleViolation) {
			t.Fatalf("err = %v, want rule violation", err)
		}
	})

	t.Run("challenging downward", func(t *testing.T) {
		mgr, _, _ := newTestLadder(t, 3)
		if _, err := mgr.Create(ctx, ByGamertag("player1"), ByGamertag("player2")); !IsKind(err, KindRuleViolation) {
			t.Fatalf("err = %v, want rule violation", err)
		}
	})

	t.Run("active timeout", func(t *testing.T) {
		mgr, store, clk := newTestLadder(t, 3)
		err := store.Update(ctx, func(tx Tx) error {
			p, err := tx.PlayerByGamertag(ctx, "player3")
			if err != nil {
				return err
			}
			p.TimeoutUntil = clk.now.Add(time.Hour)
			return tx.SavePlayer(ctx, p)
		})
		if err != nil {
			t.Fatalf("set timeout: %v", err)
		}
		if _, err := mgr.Create(ctx, ByGamertag("player3"), ByGamertag("player2")); !IsKind(err, KindRuleViolation) {
			t.Fatalf("err = %v, want rule violation", err)
		}
	})

	t.Run("unknown player", func(t *testing.T) {
		mgr, _, _ := newTestLadder(t, 2)
		if _, err := mgr.Create(ctx, ByGamertag("nobody"), ByGamertag("player1")); !IsKind(err, KindNotFound) {
			t.Fatalf("err = %v, want not found", err)
		}
	})

	t.Run("rejection leaves no state behind", func(t *testing.T) {
		mgr, store, _ := newTestLadder(t, 3)
		if _, err := mgr.Create(ctx, ByGamertag("player1"), ByGamertag("player2")); err == nil {
			t.Fatalf("expected rejection")
		}
		for id := int64(1); id <= 3; id++ {
			if getPlayer(t, store, id).Challenged {
				t.Fatalf("player %d challenged after failed create", id)
			}
		}
	})
}

func TestCompleteChallengerWinsAdjacent(t *testing.T) {
	mgr, store, _ := newTestLadder(t, 3)
	ctx := context.Background()

	if _, err := mgr.Create(ctx, ByGamertag("player3"), ByGamertag("player2")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	winner, err := mgr.Complete(ctx, ByGamertag("player3"), ByGamertag("player2"), "3-1 4-2", false)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if winner != 3 {
		t.Fatalf("winner = %d, want 3", winner)
	}
	p2, p3 := getPlayer(t, store, 2), getPlayer(t, store, 3)
	if p3.Rank != 2 || p2.Rank != 3 {
		t.Fatalf("ranks after promotion: p3=%d p2=%d, want 2 and 3", p3.Rank, p2.Rank)
	}
	if p3.Wins != 1 || p2.Losses != 1 {
		t.Fatalf("stats: p3.wins=%d p2.losses=%d, want 1 and 1", p3.Wins, p2.Losses)
	}
	if p2.Challenged || p3.Challenged {
		t.Fatalf("challenged flags not cleared")
	}
	checkDenseRanks(t, store)
}

func TestCompleteChallengerWinsBlockShift(t *testing.T) {
	mgr, store, _ := newTestLadder(t, 5)
	ctx := context.Background()

	// player5 (rank 5) challenges player2 (rank 2) and wins.
	if _, err := mgr.Create(ctx, ByGamertag("player5"), ByGamertag("player2")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := mgr.Complete(ctx, ByGamertag("player5"), ByGamertag("player2"), "1-0", false); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	wantRanks := map[int64]int{1: 1, 5: 2, 2: 3, 3: 4, 4: 5}
	for id, want := range wantRanks {
		if got := getPlayer(t, store, id).Rank; got != want {
			t.Fatalf("player%d rank = %d, want %d", id, got, want)
		}
	}
	checkDenseRanks(t, store)
}

func TestCompleteDefenderWins(t *testing.T) {
	mgr, store, clk := newTestLadder(t, 3)
	ctx := context.Background()

	if _, err := mgr.Create(ctx, ByGamertag("player3"), ByGamertag("player2")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	winner, err := mgr.Complete(ctx, ByGamertag("player3"), ByGamertag("player2"), "1-2 0-3", false)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if winner != 2 {
		t.Fatalf("winner = %d, want 2", winner)
	}
	p2, p3 := getPlayer(t, store, 2), getPlayer(t, store, 3)
	if p3.Rank != 3 || p2.Rank != 2 {
		t.Fatalf("ranks changed on defender win: p3=%d p2=%d", p3.Rank, p2.Rank)
	}
	if !p3.TimeoutUntil.Equal(clk.now.Add(7 * 24 * time.Hour)) {
		t.Fatalf("challenger timeout = %v, want now+7d", p3.TimeoutUntil)
	}
	if p3.Losses != 1 || p2.Wins != 1 {
		t.Fatalf("stats: p3.losses=%d p2.wins=%d, want 1 and 1", p3.Losses, p2.Wins)
	}
	if p2.Challenged || p3.Challenged {
		t.Fatalf("challenged flags not cleared")
	}
}

func TestCompleteArgumentsMayBeSwapped(t *testing.T) {
	mgr, store, _ := newTestLadder(t, 3)
	ctx := context.Background()

	if _, err := mgr.Create(ctx, ByGamertag("player3"), ByGamertag("player2")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	// Defender reports the result from their own perspective.
	winner, err := mgr.Complete(ctx, ByGamertag("player2"), ByGamertag("player3"), "1-2 0-5", false)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if winner != 3 {
		t.Fatalf("winner = %d, want challenger 3", winner)
	}
	if getPlayer(t, store, 3).Rank != 2 {
		t.Fatalf("challenger not promoted")
	}
}

func TestCompleteExpired(t *testing.T) {
	mgr, _, clk := newTestLadder(t, 3)
	ctx := context.Background()

	if _, err := mgr.Create(ctx, ByGamertag("player3"), ByGamertag("player2")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	clk.advance(8 * 24 * time.Hour)

	if _, err := mgr.Complete(ctx, ByGamertag("player3"), ByGamertag("player2"), "1-0", false); !IsKind(err, KindExpired) {
		t.Fatalf("err = %v, want expired", err)
	}
	// The override settles it anyway.
	if _, err := mgr.Complete(ctx, ByGamertag("player3"), ByGamertag("player2"), "1-0", true); err != nil {
		t.Fatalf("Complete with allowExpired: %v", err)
	}
}

func TestCompleteWithoutPendingChallenge(t *testing.T) {
	mgr, _, _ := newTestLadder(t, 3)
	if _, err := mgr.Complete(context.Background(), ByGamertag("player3"), ByGamertag("player2"), "1-0", false); !IsKind(err, KindNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestCompleteParseFailureMutatesNothing(t *testing.T) {
	mgr, store, _ := newTestLadder(t, 3)
	ctx := context.Background()

	if _, err := mgr.Create(ctx, ByGamertag("player3"), ByGamertag("player2")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := mgr.Complete(ctx, ByGamertag("player3"), ByGamertag("player2"), "nonsense", false); !IsKind(err, KindValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
	if !getPlayer(t, store, 2).Challenged || !getPlayer(t, store, 3).Challenged {
		t.Fatalf("challenge state lost after rejected completion")
	}
}

func TestResetAfterChallengerWin(t *testing.T) {
	mgr, store, _ := newTestLadder(t, 3)
	ctx := context.Background()

	before2, before3 := getPlayer(t, store, 2), getPlayer(t, store, 3)

	if _, err := mgr.Create(ctx, ByGamertag("player3"), ByGamertag("player2")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := mgr.Complete(ctx, ByGamertag("player3"), ByGamertag("player2"), "2-0 3-1", false); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := mgr.Reset(ctx, ByGamertag("player3"), ByGamertag("player2")); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	after2, after3 := getPlayer(t, store, 2), getPlayer(t, store, 3)
	if after2.Rank != before2.Rank || after3.Rank != before3.Rank {
		t.Fatalf("ranks not restored: p2 %d->%d, p3 %d->%d", before2.Rank, after2.Rank, before3.Rank, after3.Rank)
	}
	if after3.Wins != before3.Wins || after2.Losses != before2.Losses {
		t.Fatalf("counters not restored")
	}
	// The pair goes back to awaiting completion, not to a clean slate.
	if !after2.Challenged || !after3.Challenged {
		t.Fatalf("challenged flags not re-set after reset")
	}
	checkDenseRanks(t, store)
}

func TestResetAfterDefenderWin(t *testing.T) {
	mgr, store, clk := newTestLadder(t, 3)
	ctx := context.Background()

	if _, err := mgr.Create(ctx, ByGamertag("player3"), ByGamertag("player2")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := mgr.Complete(ctx, ByGamertag("player3"), ByGamertag("player2"), "0-1", false); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := mgr.Reset(ctx, ByGamertag("player3"), ByGamertag("player2")); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	p2, p3 := getPlayer(t, store, 2), getPlayer(t, store, 3)
	if p3.TimeoutUntil.After(clk.now) {
		t.Fatalf("challenger timeout still active after reset: %v", p3.TimeoutUntil)
	}
	if p2.Wins != 0 || p3.Losses != 0 {
		t.Fatalf("counters not restored: p2.wins=%d p3.losses=%d", p2.Wins, p3.Losses)
	}
}

func TestResetRejectedWhileChallenged(t *testing.T) {
	mgr, _, _ := newTestLadder(t, 3)
	ctx := context.Background()

	if _, err := mgr.Create(ctx, ByGamertag("player3"), ByGamertag("player2")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mgr.Reset(ctx, ByGamertag("player3"), ByGamertag("player2")); !IsKind(err, KindRuleViolation) {
		t.Fatalf("err = %v, want rule violation", err)
	}
}

func TestResetExpired(t *testing.T) {
	mgr, _, clk := newTestLadder(t, 3)
	ctx := context.Background()

	if _, err := mgr.Create(ctx, ByGamertag("player3"), ByGamertag("player2")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	clk.advance(6 * 24 * time.Hour)
	if _, err := mgr.Complete(ctx, ByGamertag("player3"), ByGamertag("player2"), "1-0", false); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	// The reset window runs from creation, so two more days push it out.
	clk.advance(2 * 24 * time.Hour)
	if err := mgr.Reset(ctx, ByGamertag("player3"), ByGamertag("player2")); !IsKind(err, KindExpired) {
		t.Fatalf("err = %v, want expired", err)
	}
}

func TestResetRestoresPendingChallenge(t *testing.T) {
	mgr, store, clk := newTestLadder(t, 3)
	ctx := context.Background()

	created := clk.now
	if _, err := mgr.Create(ctx, ByGamertag("player3"), ByGamertag("player2")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	clk.advance(24 * time.Hour)
	if _, err := mgr.Complete(ctx, ByGamertag("player3"), ByGamertag("player2"), "1-0", false); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := mgr.Reset(ctx, ByGamertag("player3"), ByGamertag("player2")); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	// The replayed match keeps the original deadline.
	info, err := mgr.ChallengeInfo(ctx, ByGamertag("player3"), false)
	if err != nil {
		t.Fatalf("ChallengeInfo after reset: %v", err)
	}
	if want := created.Add(7 * 24 * time.Hour); !info.Deadline.Equal(want) {
		t.Fatalf("deadline after reset = %v, want %v", info.Deadline, want)
	}

	// And it can be completed, this time the other way around.
	winner, err := mgr.Complete(ctx, ByGamertag("player3"), ByGamertag("player2"), "0-1", false)
	if err != nil {
		t.Fatalf("Complete after reset: %v", err)
	}
	if winner != 2 {
		t.Fatalf("winner = %d, want defender 2", winner)
	}
	p2, p3 := getPlayer(t, store, 2), getPlayer(t, store, 3)
	if p3.Rank != 3 || p2.Rank != 2 {
		t.Fatalf("ranks after replayed completion: p3=%d p2=%d, want 3 and 2", p3.Rank, p2.Rank)
	}
	if p2.Challenged || p3.Challenged {
		t.Fatalf("challenged flags not cleared after replayed completion")
	}
	checkDenseRanks(t, store)
}

func TestResetWithoutCompletedChallenge(t *testing.T) {
	mgr, _, _ := newTestLadder(t, 3)
	if err := mgr.Reset(context.Background(), ByGamertag("player3"), ByGamertag("player2")); !IsKind(err, KindNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestForfeitExpired(t *testing.T) {
	mgr, store, clk := newTestLadder(t, 3)
	ctx := context.Background()

	if _, err := mgr.Create(ctx, ByGamertag("player3"), ByGamertag("player2")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	clk.advance(8 * 24 * time.Hour)

	results, err := mgr.ForfeitExpired(ctx)
	if err != nil {
		t.Fatalf("ForfeitExpired: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d forfeits, want 1", len(results))
	}
	res := results[0]
	if res.Challenge.Winner != res.Challenger.ID {
		t.Fatalf("forfeit winner = %d, want challenger %d", res.Challenge.Winner, res.Challenger.ID)
	}
	p2, p3 := getPlayer(t, store, 2), getPlayer(t, store, 3)
	if p3.Rank != 2 || p2.Rank != 3 {
		t.Fatalf("challenger not promoted on forfeit: p3=%d p2=%d", p3.Rank, p2.Rank)
	}
	if p2.Challenged || p3.Challenged {
		t.Fatalf("challenged flags not cleared after forfeit")
	}
	checkDenseRanks(t, store)

	// Second sweep finds nothing.
	results, err = mgr.ForfeitExpired(ctx)
	if err != nil {
		t.Fatalf("second ForfeitExpired: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("got %d forfeits on second sweep, want 0", len(results))
	}
}

func TestForfeitLeavesFreshChallengesAlone(t *testing.T) {
	mgr, _, _ := newTestLadder(t, 3)
	ctx := context.Background()

	if _, err := mgr.Create(ctx, ByGamertag("player3"), ByGamertag("player2")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	results, err := mgr.ForfeitExpired(ctx)
	if err != nil {
		t.Fatalf("ForfeitExpired: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("fresh challenge forfeited")
	}
}

func TestRanksStayDenseAcrossLifecycle(t *testing.T) {
	mgr, store, clk := newTestLadder(t, 6)
	ctx := context.Background()

	steps := []func() error{
		func() error { _, err := mgr.Create(ctx, ByGamertag("player6"), ByGamertag("player3")); return err },
		func() error {
			_, err := mgr.Complete(ctx, ByGamertag("player6"), ByGamertag("player3"), "1-0", false)
			return err
		},
		func() error { _, err := mgr.Create(ctx, ByGamertag("player5"), ByGamertag("player4")); return err },
		func() error {
			_, err := mgr.Complete(ctx, ByGamertag("player5"), ByGamertag("player4"), "0-1", false)
			return err
		},
		func() error { return mgr.Reset(ctx, ByGamertag("player5"), ByGamertag("player4")) },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		checkDenseRanks(t, store)
		clk.advance(time.Hour)
	}
}
