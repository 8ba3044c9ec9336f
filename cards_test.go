package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertConserved checks that no card has been duplicated or lost.
func assertConserved(t *testing.T, g *Game, deckSize int) {
	t.Helper()

	inHands := 0
	for _, p := range g.Players {
		inHands += len(p.Hand)
	}

	total := len(g.RemainingDeck) + inHands + len(g.GamePool)
	assert.Equal(t, deckSize+g.customCards, total)

	seen := map[string]bool{}
	all := append([]Card{}, g.RemainingDeck...)
	all = append(all, g.GamePool...)
	for _, p := range g.Players {
		all = append(all, p.Hand...)
	}
	for _, c := range all {
		assert.False(t, seen[c.Term], "card %q appears twice", c.Term)
		seen[c.Term] = true
	}
}

func newLobby(t *testing.T, deckSize int, names ...string) *Game {
	t.Helper()

	g := NewGame("test", testDeck(deckSize), DefaultRules(), seededRand())
	for _, name := range names {
		_, err := g.AddPlayer(name, "Red")
		require.NoError(t, err)
	}

	return g
}

func TestDraw(t *testing.T) {
	g := newLobby(t, 30, "A")

	hand, err := g.Draw("A")
	require.NoError(t, err)
	assert.Len(t, hand, 12)
	assert.Len(t, g.RemainingDeck, 18)
	assertConserved(t, g, 30)

	again, err := g.Draw("A")
	require.NoError(t, err)
	assert.Equal(t, hand, again, "drawing twice keeps the first hand")
	assert.Len(t, g.RemainingDeck, 18)
}

func TestDrawInsufficientDeck(t *testing.T) {
	g := newLobby(t, 20, "A", "B")

	_, err := g.Draw("A")
	require.NoError(t, err)

	_, err = g.Draw("B")
	require.ErrorIs(t, err, ErrInsufficientDeck)
	assert.Empty(t, g.Players["B"].Hand)
	assert.Len(t, g.RemainingDeck, 8)
}

func TestDrawUnknownPlayer(t *testing.T) {
	g := newLobby(t, 20, "A")

	_, err := g.Draw("nobody")
	require.ErrorIs(t, err, ErrUnknownPlayer)
}

func TestRefresh(t *testing.T) {
	g := newLobby(t, 40, "A")

	hand, err := g.Draw("A")
	require.NoError(t, err)

	_, err = g.Submit("A", terms(hand[:2]))
	require.NoError(t, err)

	fresh, err := g.Refresh("A")
	require.NoError(t, err)
	assert.Len(t, fresh, 10, "hand size minus submitted")
	assert.Len(t, g.Players["A"].Submitted, 2)
	assertConserved(t, g, 40)
}

func TestRefreshInsufficientDeckLeavesState(t *testing.T) {
	g := newLobby(t, 12, "A")

	hand, err := g.Draw("A")
	require.NoError(t, err)
	require.Empty(t, g.RemainingDeck)

	// 12 cards are available again once the hand goes back, so this works.
	_, err = g.Refresh("A")
	require.NoError(t, err)

	g.Rules.HandSize = 13
	before := append([]Card(nil), g.Players["A"].Hand...)

	_, err = g.Refresh("A")
	require.ErrorIs(t, err, ErrInsufficientDeck)
	assert.Equal(t, before, g.Players["A"].Hand)
	assert.Empty(t, g.RemainingDeck)
	assert.Len(t, hand, 12)
}

func TestRefreshAfterQuotaKeepsDeck(t *testing.T) {
	g := newLobby(t, 40, "A")
	fillQuota(t, g, "A")

	deck := len(g.RemainingDeck)

	_, err := g.Refresh("A")
	require.ErrorIs(t, err, ErrOverQuota)
	assert.Empty(t, g.Players["A"].Hand)
	assert.Len(t, g.RemainingDeck, deck)
	assertConserved(t, g, 40)
}

func TestSubmitPartialTopsUpHand(t *testing.T) {
	g := newLobby(t, 40, "A")

	hand, err := g.Draw("A")
	require.NoError(t, err)

	res, err := g.Submit("A", terms(hand[:4]))
	require.NoError(t, err)
	assert.Equal(t, SubmitResult{Moved: 4, Remaining: 2, Done: false}, res)

	p := g.Players["A"]
	assert.Len(t, p.Submitted, 4)
	assert.Len(t, p.Hand, 12)
	assert.Len(t, g.GamePool, 4)
	for _, c := range hand[4:] {
		assert.Contains(t, terms(p.Hand), c.Term, "unselected cards stay in hand")
	}
	assertConserved(t, g, 40)
}

func TestSubmitCompletesAndReturnsHand(t *testing.T) {
	g := newLobby(t, 40, "A")

	hand, err := g.Draw("A")
	require.NoError(t, err)

	res, err := g.Submit("A", terms(hand[:6]))
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Zero(t, res.Remaining)

	assert.Empty(t, g.Players["A"].Hand)
	assert.Len(t, g.RemainingDeck, 34)
	assertConserved(t, g, 40)

	hand, err = g.Draw("A")
	require.NoError(t, err)
	assert.Empty(t, hand, "finished players are not dealt again")
}

func TestSubmitOverQuota(t *testing.T) {
	g := newLobby(t, 40, "A")

	hand, err := g.Draw("A")
	require.NoError(t, err)

	_, err = g.Submit("A", terms(hand[:7]))
	require.ErrorIs(t, err, ErrOverQuota)
	assert.Empty(t, g.GamePool)
	assert.Equal(t, hand, g.Players["A"].Hand)

	_, err = g.Submit("A", terms(hand[:5]))
	require.NoError(t, err)

	_, err = g.Submit("A", terms(g.Players["A"].Hand[:2]))
	require.ErrorIs(t, err, ErrOverQuota)
	assert.Len(t, g.GamePool, 5)
}

func TestSubmitIgnoresTermsNotInHand(t *testing.T) {
	g := newLobby(t, 40, "A")

	_, err := g.Draw("A")
	require.NoError(t, err)

	res, err := g.Submit("A", []string{"not-a-card"})
	require.NoError(t, err)
	assert.Zero(t, res.Moved)
	assert.Empty(t, g.GamePool)
}

func TestSubmitCustom(t *testing.T) {
	g := newLobby(t, 40, "A")

	res, err := g.SubmitCustom("A", Card{Term: "  Grandma  ", Definition: "Ours", Points: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Remaining)
	assert.Equal(t, "Grandma", g.GamePool[0].Term)
	assert.Equal(t, 1, g.customCards)
	assertConserved(t, g, 40)

	_, err = g.SubmitCustom("A", Card{Term: "Grandma", Points: 1})
	require.ErrorIs(t, err, ErrDuplicateTerm)

	_, err = g.SubmitCustom("A", Card{Term: "card-03", Points: 1})
	require.ErrorIs(t, err, ErrDuplicateTerm, "deck terms are taken too")

	_, err = g.SubmitCustom("A", Card{Term: " ", Points: 1})
	require.ErrorIs(t, err, ErrInvalidCard)

	_, err = g.SubmitCustom("A", Card{Term: "Zero", Points: 0})
	require.ErrorIs(t, err, ErrInvalidCard)

	assert.Len(t, g.GamePool, 1)
}

func TestSubmitCustomCountsTowardQuota(t *testing.T) {
	g := newLobby(t, 40, "A")

	hand, err := g.Draw("A")
	require.NoError(t, err)

	_, err = g.Submit("A", terms(hand[:5]))
	require.NoError(t, err)

	res, err := g.SubmitCustom("A", Card{Term: "Custom", Points: 3})
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Empty(t, g.Players["A"].Hand)
	assertConserved(t, g, 40)

	_, err = g.SubmitCustom("A", Card{Term: "Another", Points: 3})
	require.ErrorIs(t, err, ErrOverQuota)
}

func TestAllSubmitted(t *testing.T) {
	g := NewGame("test", testDeck(60), DefaultRules(), seededRand())
	assert.False(t, g.AllSubmitted(), "no players")

	for _, name := range []string{"A", "B"} {
		_, err := g.AddPlayer(name, "Red")
		require.NoError(t, err)
	}

	_, err := g.Draw("A")
	require.NoError(t, err)

	for n := 1; n <= 5; n++ {
		_, err := g.Submit("A", terms(g.Players["A"].Hand[:1]))
		require.NoError(t, err)
		assert.False(t, g.AllSubmitted(), "A has %d", n)
	}

	fillQuota(t, g, "B")
	assert.False(t, g.AllSubmitted(), "A still has one to go")

	_, err = g.Submit("A", terms(g.Players["A"].Hand[:1]))
	require.NoError(t, err)
	assert.True(t, g.AllSubmitted())
	assert.Len(t, g.GamePool, 12)
}

func TestRemovePlayerReturnsCards(t *testing.T) {
	g := newLobby(t, 40, "A", "B")

	fillQuota(t, g, "A")
	_, err := g.Draw("B")
	require.NoError(t, err)

	require.NoError(t, g.RemovePlayer("A"))
	assert.Empty(t, g.GamePool)
	assertConserved(t, g, 40)

	require.NoError(t, g.RemovePlayer("B"))
	assert.Len(t, g.RemainingDeck, 40)

	require.ErrorIs(t, g.RemovePlayer("B"), ErrUnknownPlayer)
}

func TestSubmissionStatus(t *testing.T) {
	g := newLobby(t, 40, "A", "B")
	fillQuota(t, g, "B")

	assert.Equal(t, []PlayerStatus{
		{Name: "A", Team: "Red", Submitted: 0, Done: false},
		{Name: "B", Team: "Red", Submitted: 6, Done: true},
	}, g.SubmissionStatus())
}
