package pgstore

import (
	"context"
	"database/sql"

	"github.com/Erik-Lamers1/os3-rll-bot/internal/ladder"
)

const playerColumns = `id, gamertag, discord, "rank", wins, losses, challenged, timeout`

func scanPlayer(row *sql.Row) (*ladder.Player, error) {
	var p ladder.Player
	err := row.Scan(&p.ID, &p.Gamertag, &p.Discord, &p.Rank, &p.Wins, &p.Losses, &p.Challenged, &p.TimeoutUntil)
	if err != nil {
		return nil, noRow(err)
	}
	return &p, nil
}

func (t *pgTx) CreatePlayer(ctx context.Context, p *ladder.Player) error {
	q := `INSERT INTO users (gamertag, discord, "rank", wins, losses, challenged, timeout)
	      VALUES ($1, $2,
	        CASE WHEN $3 > 0 THEN $3 ELSE (SELECT COALESCE(MAX("rank"), 0) + 1 FROM users) END,
	        $4, $5, $6, $7)
	      RETURNING id, "rank"`
	return t.tx.QueryRowContext(ctx, q,
		p.Gamertag, p.Discord, p.Rank, p.Wins, p.Losses, p.Challenged, p.TimeoutUntil,
	).Scan(&p.ID, &p.Rank)
}

func (t *pgTx) PlayerByID(ctx context.Context, id int64) (*ladder.Player, error) {
	q := `SELECT ` + playerColumns + ` FROM users WHERE id = $1` + t.lockClause()
	return scanPlayer(t.tx.QueryRowContext(ctx, q, id))
}

func (t *pgTx) PlayerByGamertag(ctx context.Context, tag string) (*ladder.Player, error) {
	q := `SELECT ` + playerColumns + ` FROM users WHERE LOWER(gamertag) = LOWER($1)` + t.lockClause()
	return scanPlayer(t.tx.QueryRowContext(ctx, q, tag))
}

func (t *pgTx) PlayerByDiscord(ctx context.Context, handle string) (*ladder.Player, error) {
	q := `SELECT ` + playerColumns + ` FROM users WHERE LOWER(discord) = LOWER($1)` + t.lockClause()
	return scanPlayer(t.tx.QueryRowContext(ctx, q, handle))
}

func (t *pgTx) SavePlayer(ctx context.Context, p *ladder.Player) error {
	q := `UPDATE users SET gamertag = $2, discord = $3, "rank" = $4, wins = $5,
	      losses = $6, challenged = $7, timeout = $8 WHERE id = $1`
	res, err := t.tx.ExecContext(ctx, q,
		p.ID, p.Gamertag, p.Discord, p.Rank, p.Wins, p.Losses, p.Challenged, p.TimeoutUntil)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ladder.ErrNoRow
	}
	return nil
}

func (t *pgTx) ShiftRanks(ctx context.Context, from, to int) error {
	q := `UPDATE users SET "rank" = "rank" + 1 WHERE "rank" >= $1 AND "rank" < $2`
	_, err := t.tx.ExecContext(ctx, q, from, to)
	return err
}

func (t *pgTx) PlayersByRank(ctx context.Context) ([]*ladder.Player, error) {
	q := `SELECT ` + playerColumns + ` FROM users ORDER BY "rank" ASC`
	rows, err := t.tx.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*ladder.Player
	for rows.Next() {
		var p ladder.Player
		if err := rows.Scan(&p.ID, &p.Gamertag, &p.Discord, &p.Rank, &p.Wins, &p.Losses, &p.Challenged, &p.TimeoutUntil); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
