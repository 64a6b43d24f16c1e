// Package announce builds the embed payloads the chat front end posts
// and queues them for delivery.
package announce

import (
	"github.com/google/uuid"

	"github.com/Erik-Lamers1/os3-rll-bot/internal/ladder"
	"github.com/Erik-Lamers1/os3-rll-bot/internal/msgcat"
)

// Embed colours, matching the established announcement styling.
const (
	colourNew      = 2234352
	colourWon      = 48393
	colourDefended = 11540741
	colourInfo     = 0
	colourReset    = 16753920
)

// Embed is the rich part of an announcement.
type Embed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Footer      string `json:"footer"`
	Colour      int    `json:"colour"`
}

// Message is one announcement as handed to the front end.
type Message struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Embed   Embed  `json:"embed"`
}

// Builder renders announcements from the message catalog.
type Builder struct {
	cat *msgcat.Catalog
}

func NewBuilder(cat *msgcat.Catalog) *Builder { return &Builder{cat: cat} }

func (b *Builder) build(prefix string, colour int, data any) (*Message, error) {
	content, err := b.cat.Render(prefix+".content", data)
	if err != nil {
		return nil, err
	}
	title, err := b.cat.Render(prefix+".title", data)
	if err != nil {
		return nil, err
	}
	desc, err := b.cat.Render(prefix+".description", data)
	if err != nil {
		return nil, err
	}
	footer, err := b.cat.Render(prefix+".footer", data)
	if err != nil {
		return nil, err
	}
	return &Message{
		ID:      uuid.NewString(),
		Content: content,
		Embed:   Embed{Title: title, Description: desc, Footer: footer, Colour: colour},
	}, nil
}

// NewChallenge announces a freshly created challenge.
func (b *Builder) NewChallenge(challenger, defender *ladder.Player) (*Message, error) {
	return b.build("challenge.new", colourNew, map[string]any{
		"Challenger": challenger.Gamertag,
		"Defender":   defender.Gamertag,
	})
}

// Winner announces a completed challenge. challenger and defender are the
// stored challenge roles; tally is oriented the same way.
func (b *Builder) Winner(challenger, defender *ladder.Player, winnerID int64, t ladder.Tally) (*Message, error) {
	if winnerID == challenger.ID {
		return b.build("challenge.won", colourWon, map[string]any{
			"Winner":      challenger.Gamertag,
			"Loser":       defender.Gamertag,
			"WinnerGames": t.P1Wins,
			"LoserGames":  t.P2Wins,
		})
	}
	return b.build("challenge.defended", colourDefended, map[string]any{
		"Winner":      defender.Gamertag,
		"Loser":       challenger.Gamertag,
		"WinnerGames": t.P2Wins,
		"LoserGames":  t.P1Wins,
	})
}

// Info announces the state of an outstanding challenge.
func (b *Builder) Info(info *ladder.ChallengeInfo) (*Message, error) {
	return b.build("challenge.info", colourInfo, map[string]any{
		"Challenger":   info.P1.Name,
		"Defender":     info.P2.Name,
		"DefenderRank": info.P2.Rank,
		"Deadline":     info.Deadline,
	})
}

// Reset announces a voided challenge.
func (b *Builder) Reset(challenger, defender *ladder.Player) (*Message, error) {
	return b.build("challenge.reset", colourReset, map[string]any{
		"Challenger": challenger.Gamertag,
		"Defender":   defender.Gamertag,
	})
}

// Forfeit announces an expired challenge settled by the sweep.
func (b *Builder) Forfeit(res ladder.ForfeitResult) (*Message, error) {
	return b.build("challenge.forfeit", colourDefended, map[string]any{
		"Challenger": res.Challenger.Gamertag,
		"Defender":   res.Defender.Gamertag,
	})
}
