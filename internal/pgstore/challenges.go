package pgstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/Erik-Lamers1/os3-rll-bot/internal/ladder"
)

const challengeColumns = `id, p1, p2, date, p1_wins, p2_wins, p1_score, p2_score, winner, state`

func scanChallenge(row *sql.Row) (*ladder.Challenge, error) {
	var c ladder.Challenge
	err := row.Scan(&c.ID, &c.P1, &c.P2, &c.Date,
		&c.P1Wins, &c.P2Wins, &c.P1Score, &c.P2Score, &c.Winner, &c.State)
	if err != nil {
		return nil, noRow(err)
	}
	return &c, nil
}

func (t *pgTx) CreateChallenge(ctx context.Context, c *ladder.Challenge) error {
	q := `INSERT INTO challenges (p1, p2, date, p1_wins, p2_wins, p1_score, p2_score, winner, state)
	      VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`
	return t.tx.QueryRowContext(ctx, q,
		c.P1, c.P2, c.Date, c.P1Wins, c.P2Wins, c.P1Score, c.P2Score, c.Winner, c.State,
	).Scan(&c.ID)
}

func (t *pgTx) LatestChallengeForPair(ctx context.Context, a, b int64, completedOnly bool) (*ladder.Challenge, error) {
	q := `SELECT ` + challengeColumns + ` FROM challenges
	      WHERE ((p1 = $1 AND p2 = $2) OR (p1 = $2 AND p2 = $1)) AND state = $3
	      ORDER BY date DESC, id DESC LIMIT 1` + t.lockClause()
	return scanChallenge(t.tx.QueryRowContext(ctx, q, a, b, stateFilter(completedOnly)))
}

func (t *pgTx) LatestChallengeForPlayer(ctx context.Context, id int64, completedOnly bool) (*ladder.Challenge, error) {
	q := `SELECT ` + challengeColumns + ` FROM challenges
	      WHERE (p1 = $1 OR p2 = $1) AND state = $2
	      ORDER BY date DESC, id DESC LIMIT 1` + t.lockClause()
	return scanChallenge(t.tx.QueryRowContext(ctx, q, id, stateFilter(completedOnly)))
}

func (t *pgTx) PendingBefore(ctx context.Context, cutoff time.Time) ([]*ladder.Challenge, error) {
	q := `SELECT ` + challengeColumns + ` FROM challenges
	      WHERE state = $1 AND date < $2 ORDER BY id ASC`
	rows, err := t.tx.QueryContext(ctx, q, ladder.StatePending, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*ladder.Challenge
	for rows.Next() {
		var c ladder.Challenge
		if err := rows.Scan(&c.ID, &c.P1, &c.P2, &c.Date,
			&c.P1Wins, &c.P2Wins, &c.P1Score, &c.P2Score, &c.Winner, &c.State); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (t *pgTx) SaveChallenge(ctx context.Context, c *ladder.Challenge) error {
	q := `UPDATE challenges SET p1_wins = $2, p2_wins = $3, p1_score = $4, p2_score = $5,
	      winner = $6, state = $7 WHERE id = $1`
	res, err := t.tx.ExecContext(ctx, q,
		c.ID, c.P1Wins, c.P2Wins, c.P1Score, c.P2Score, c.Winner, c.State)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ladder.ErrNoRow
	}
	return nil
}

func stateFilter(completedOnly bool) ladder.ChallengeState {
	if completedOnly {
		return ladder.StateCompleted
	}
	return ladder.StatePending
}
