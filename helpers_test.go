package main

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func seededRand() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func testDeck(n int) []Card {
	deck := make([]Card, n)
	for i := range deck {
		deck[i] = Card{
			Term:       fmt.Sprintf("card-%02d", i),
			Definition: fmt.Sprintf("definition %d", i),
			Points:     i%3 + 1,
		}
	}
	return deck
}

func terms(cards []Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.Term
	}
	return out
}

// fillQuota draws for a player and submits the first cards of their hand
// until their quota is met.
func fillQuota(t *testing.T, g *Game, name string) {
	t.Helper()

	hand, err := g.Draw(name)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(hand), g.Rules.Submissions)

	res, err := g.Submit(name, terms(hand[:g.Rules.Submissions]))
	require.NoError(t, err)
	require.True(t, res.Done)
}

// redBlueGame returns a game with Red(A, B) and Blue(C), every player's
// cards submitted.
func redBlueGame(t *testing.T) *Game {
	t.Helper()

	g := NewGame("test", testDeck(60), DefaultRules(), seededRand())

	for _, p := range []struct{ name, team string }{
		{"A", "Red"},
		{"B", "Red"},
		{"C", "Blue"},
	} {
		_, err := g.AddPlayer(p.name, p.team)
		require.NoError(t, err)
	}

	for _, name := range []string{"A", "B", "C"} {
		fillQuota(t, g, name)
	}

	require.True(t, g.AllSubmitted())

	return g
}

// recorder is a Broadcaster that keeps every notification in order.
type recorder struct {
	mu     sync.Mutex
	events []any
}

func (r *recorder) Publish(_ string, msg any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, msg)
}

func (r *recorder) snapshot() []any {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]any(nil), r.events...)
}

func (r *recorder) types() []string {
	events := r.snapshot()

	out := make([]string, len(events))
	for i, e := range events {
		out[i] = messageType(e)
	}
	return out
}

func (r *recorder) timers() []int {
	var out []int
	for _, e := range r.snapshot() {
		if m, ok := e.(TimerMessage); ok {
			out = append(out, m.TimeLeft)
		}
	}
	return out
}

func (r *recorder) count(kind string) int {
	n := 0
	for _, typ := range r.types() {
		if typ == kind {
			n++
		}
	}
	return n
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = nil
}

func messageType(msg any) string {
	data, err := json.Marshal(msg)
	if err != nil {
		return ""
	}

	var head struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(data, &head)

	return head.Type
}
