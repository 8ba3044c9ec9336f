package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddPlayer(t *testing.T) {
	g := NewGame("test", testDeck(10), DefaultRules(), seededRand())

	name, err := g.AddPlayer(" Sam ", " Red ")
	require.NoError(t, err)
	assert.Equal(t, "Sam", name)

	name, err = g.AddPlayer("Sam", "Blue")
	require.NoError(t, err)
	assert.Equal(t, "Sam 2", name)

	name, err = g.AddPlayer("Sam", "")
	require.NoError(t, err)
	assert.Equal(t, "Sam 3", name)

	_, err = g.AddPlayer("  ", "Red")
	require.ErrorIs(t, err, ErrInvalidCommand)

	assert.Equal(t, []string{"Red", "Blue"}, g.teamOrder)
	assert.Equal(t, []string{"Sam"}, g.Teams["Red"].Members)
	assert.Equal(t, []string{"Sam 2"}, g.Teams["Blue"].Members)
	assert.Empty(t, g.Players["Sam 3"].Team)
}

func TestAddPlayerAfterStart(t *testing.T) {
	g := redBlueGame(t)
	require.NoError(t, g.StartRound())

	_, err := g.AddPlayer("Late", "Red")
	require.ErrorIs(t, err, ErrGameInProgress)
}

func TestStartRoundRequiresSubmissions(t *testing.T) {
	g := newLobby(t, 40, "A", "B")
	fillQuota(t, g, "A")

	require.ErrorIs(t, g.StartRound(), ErrNotReady)
	assert.Equal(t, PhaseSubmitting, g.Phase)

	fillQuota(t, g, "B")
	require.NoError(t, g.StartRound())
	assert.Equal(t, PhaseRoundActive, g.Phase)

	require.ErrorIs(t, g.StartRound(), ErrWrongPhase)
}

func TestStartRoundNeedsATeam(t *testing.T) {
	g := NewGame("test", testDeck(20), DefaultRules(), seededRand())
	_, err := g.AddPlayer("Loner", "")
	require.NoError(t, err)
	fillQuota(t, g, "Loner")

	require.ErrorIs(t, g.StartRound(), ErrNotReady)
}

func TestRedBlueScenario(t *testing.T) {
	g := redBlueGame(t)
	require.Len(t, g.GamePool, 18)

	require.NoError(t, g.StartRound())
	require.Len(t, g.ActivePool, 18)
	assert.ElementsMatch(t, g.GamePool, g.ActivePool)
	assert.Equal(t, []TurnSlot{{"Red", "A"}, {"Blue", "C"}, {"Red", "B"}}, g.TurnOrder)

	actor, ok := g.CurrentActor()
	require.True(t, ok)
	assert.Equal(t, "A", actor.Actor)

	target := g.ActivePool[3]
	card, ok, err := g.Guess(target.Term, "A")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, target, card)
	assert.Len(t, g.ActivePool, 17)
	assert.Equal(t, target.Points, g.Teams["Red"].Score)
	assert.Zero(t, g.Teams["Blue"].Score)
	assert.Equal(t, 1, g.CardsGuessed)

	for len(g.ActivePool) > 0 {
		assert.False(t, g.IsRoundOver())
		_, ok, err := g.Guess(g.ActivePool[0].Term, "C")
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.True(t, g.IsRoundOver())

	slot, ok := g.NextTurn()
	require.True(t, ok)
	assert.Equal(t, 2, g.CurrentRound)
	assert.Equal(t, PhaseRoundActive, g.Phase)
	assert.Len(t, g.ActivePool, 18)
	assert.Zero(t, g.CurrentTurnIndex)
	assert.Equal(t, []string{"Blue", "Red"}, g.teamOrder, "teams rotate between rounds")
	assert.Equal(t, "Blue", slot.Team)

	total := 0
	for _, c := range g.GamePool {
		total += c.Points
	}
	assert.Equal(t, total, g.Teams["Red"].Score+g.Teams["Blue"].Score)
}

func TestSkipIsNotDrain(t *testing.T) {
	g := redBlueGame(t)
	require.NoError(t, g.StartRound())

	first := g.ActivePool[0]
	for range 50 {
		require.True(t, g.Skip(g.ActivePool[0].Term))
		assert.False(t, g.IsRoundOver())
	}
	assert.Len(t, g.ActivePool, 18)

	require.True(t, g.Skip(first.Term))
	assert.Equal(t, first, g.ActivePool[17])

	assert.False(t, g.Skip("missing"))
}

func TestStaleGuessIsNoop(t *testing.T) {
	g := redBlueGame(t)
	require.NoError(t, g.StartRound())

	term := g.ActivePool[0].Term
	_, ok, err := g.Guess(term, "A")
	require.NoError(t, err)
	require.True(t, ok)

	score := g.Teams["Red"].Score
	size := len(g.ActivePool)

	_, ok, err = g.Guess(term, "A")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, score, g.Teams["Red"].Score)
	assert.Len(t, g.ActivePool, size)
}

func TestGuessUnknownActor(t *testing.T) {
	g := redBlueGame(t)
	require.NoError(t, g.StartRound())

	_, _, err := g.Guess(g.ActivePool[0].Term, "Nobody")
	require.ErrorIs(t, err, ErrUnknownPlayer)
	assert.Len(t, g.ActivePool, 18)
}

func TestGuessOutsideRound(t *testing.T) {
	g := redBlueGame(t)

	_, ok, err := g.Guess(g.GamePool[0].Term, "A")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, g.Teams["Red"].Score)
}

func TestNextTurnCyclesActors(t *testing.T) {
	g := redBlueGame(t)
	require.NoError(t, g.StartRound())

	g.TurnTimeLeft = 7

	var actors []string
	for range 4 {
		slot, ok := g.NextTurn()
		require.True(t, ok)
		actors = append(actors, slot.Actor)
		assert.Equal(t, g.Rules.TurnSeconds, g.TurnTimeLeft)
	}

	assert.Equal(t, []string{"C", "B", "C", "A"}, actors)
	assert.Equal(t, 1, g.CurrentRound)
}

func TestNextTurnEndsGameAfterLastRound(t *testing.T) {
	g := redBlueGame(t)
	g.Rules.TotalRounds = 2
	require.NoError(t, g.StartRound())

	drain := func() {
		for len(g.ActivePool) > 0 {
			_, _, err := g.Guess(g.ActivePool[0].Term, "A")
			require.NoError(t, err)
		}
	}

	drain()
	_, ok := g.NextTurn()
	require.True(t, ok)
	assert.Equal(t, 2, g.CurrentRound)

	drain()
	_, ok = g.NextTurn()
	assert.False(t, ok)
	assert.Equal(t, PhaseGameOver, g.Phase)
	assert.Equal(t, 2, g.CurrentRound, "round never passes the total")

	_, ok = g.NextTurn()
	assert.False(t, ok)
}

func TestNextTurnWithoutActorsChangesNothing(t *testing.T) {
	g := redBlueGame(t)
	require.NoError(t, g.StartRound())

	for _, name := range []string{"A", "B", "C"} {
		require.NoError(t, g.RemovePlayer(name))
	}
	g.TurnTimeLeft = 7

	_, ok := g.NextTurn()
	assert.False(t, ok)
	assert.Equal(t, PhaseRoundActive, g.Phase, "not a finished game")
	assert.Zero(t, g.CurrentTurnIndex)
	assert.Equal(t, 7, g.TurnTimeLeft)
}

func TestFinishRound(t *testing.T) {
	g := redBlueGame(t)
	g.Rules.TotalRounds = 2
	require.NoError(t, g.StartRound())

	assert.False(t, g.FinishRound())
	assert.Equal(t, PhaseRoundOver, g.Phase)

	require.NoError(t, g.StartRound())
	assert.Equal(t, 2, g.CurrentRound)

	assert.True(t, g.FinishRound())
	assert.Equal(t, PhaseGameOver, g.Phase)
	require.ErrorIs(t, g.StartRound(), ErrWrongPhase)
}

func TestStandings(t *testing.T) {
	g := NewGame("test", testDeck(10), DefaultRules(), seededRand())
	for _, p := range [][2]string{{"a", "Zebras"}, {"b", "Ants"}, {"c", "Moles"}} {
		_, err := g.AddPlayer(p[0], p[1])
		require.NoError(t, err)
	}

	g.Teams["Zebras"].Score = 5
	g.Teams["Ants"].Score = 5
	g.Teams["Moles"].Score = 9

	assert.Equal(t, []Standing{
		{"Moles", 9},
		{"Ants", 5},
		{"Zebras", 5},
	}, g.Standings())

	r := g.Result()
	assert.Equal(t, Standing{"Moles", 9}, r.Winner)
	assert.True(t, r.HasRunnerUp)
	assert.Equal(t, Standing{"Ants", 5}, r.RunnerUp)
	assert.Len(t, r.FullStandings, 3)

	assert.Equal(t, "The Zebras have 5 points! The Ants have 5 points! The Moles have 9 points!", g.scoresSummary())
}

func TestResultSingleTeam(t *testing.T) {
	g := NewGame("test", testDeck(10), DefaultRules(), seededRand())
	_, err := g.AddPlayer("solo", "Only")
	require.NoError(t, err)

	r := g.Result()
	assert.Equal(t, "Only", r.Winner.Team)
	assert.False(t, r.HasRunnerUp)

	msg := newGameOverMessage(r)
	assert.Empty(t, msg.RunnerUpTeam)
	assert.Len(t, msg.Standings, 1)
}

func TestTeammates(t *testing.T) {
	g := redBlueGame(t)

	assert.Equal(t, []string{"B"}, g.teammates("Red", "A"))
	assert.Equal(t, []string{}, g.teammates("Blue", "C"))
	assert.Equal(t, []string{}, g.teammates("Green", "X"))
}
