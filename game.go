// Fishbowl game state
//
// Players join a session and pick a team. Each player is dealt a hand from the
// session's deck and commits a fixed number of cards to the shared game pool,
// optionally writing their own. Once everyone has submitted, the pool is
// played over several rounds: on each turn one player describes cards from
// the shuffled active pool while their teammates guess against the clock.
// Guessed cards score points for the describer's team and leave the pool;
// skipped cards go to the back. A round ends when the pool is empty.
//
// Phases:
//   submitting   → round_active   (start_round, all cards in)
//   round_active → round_over     (pool drained, rounds remain)
//   round_active → game_over      (pool drained on the final round)
//   round_over   → round_active   (start_round or start_next_turn)
//
// Game carries no locking of its own; Session serialises access to it.

package main

import (
	"cmp"
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
)

type Phase string

const (
	PhaseSubmitting  Phase = "submitting"
	PhaseRoundActive Phase = "round_active"
	PhaseRoundOver   Phase = "round_over"
	PhaseGameOver    Phase = "game_over"
)

type Rules struct {
	HandSize    int
	Submissions int
	TurnSeconds int
	TotalRounds int
}

func DefaultRules() Rules {
	return Rules{
		HandSize:    12,
		Submissions: 6,
		TurnSeconds: 63,
		TotalRounds: 3,
	}
}

type Player struct {
	Name      string
	Team      string
	Hand      []Card
	Submitted []Card
}

type Team struct {
	Name    string
	Members []string
	Score   int
}

type Game struct {
	ID    string
	Rules Rules
	Phase Phase

	Players   map[string]*Player
	joinOrder []string
	Teams     map[string]*Team
	teamOrder []string

	RemainingDeck []Card
	GamePool      []Card
	ActivePool    []Card
	customCards   int
	terms         map[string]struct{}

	TurnOrder        []TurnSlot
	CurrentTurnIndex int
	TurnTimeLeft     int
	CurrentRound     int
	Paused           bool
	CardsGuessed     int

	rng *rand.Rand
}

func NewGame(id string, deck []Card, rules Rules, rng *rand.Rand) *Game {
	g := &Game{
		ID:            id,
		Rules:         rules,
		Phase:         PhaseSubmitting,
		Players:       make(map[string]*Player),
		joinOrder:     []string{},
		Teams:         make(map[string]*Team),
		teamOrder:     []string{},
		RemainingDeck: slices.Clone(deck),
		GamePool:      []Card{},
		ActivePool:    []Card{},
		terms:         make(map[string]struct{}, len(deck)),
		TurnOrder:     []TurnSlot{},
		TurnTimeLeft:  rules.TurnSeconds,
		CurrentRound:  1,
		rng:           rng,
	}

	for _, c := range deck {
		g.terms[c.Term] = struct{}{}
	}

	return g
}

// AddPlayer registers a player, creating their team on first use. Name
// collisions are resolved by suffixing " 2", " 3", and so on; the final name
// is returned.
func (g *Game) AddPlayer(name, team string) (string, error) {
	name = strings.TrimSpace(name)
	team = strings.TrimSpace(team)

	if name == "" {
		return "", fmt.Errorf("%w: player name is required", ErrInvalidCommand)
	}
	if g.Phase != PhaseSubmitting {
		return "", ErrGameInProgress
	}

	final := name
	for count := 2; ; count++ {
		if _, taken := g.Players[final]; !taken {
			break
		}
		final = name + " " + strconv.Itoa(count)
	}

	g.Players[final] = &Player{Name: final, Team: team}
	g.joinOrder = append(g.joinOrder, final)

	if team != "" {
		t := g.addTeam(team)
		t.Members = append(t.Members, final)
	}

	return final, nil
}

func (g *Game) addTeam(name string) *Team {
	if t, ok := g.Teams[name]; ok {
		return t
	}

	t := &Team{Name: name, Members: []string{}}
	g.Teams[name] = t
	g.teamOrder = append(g.teamOrder, name)

	return t
}

// RemovePlayer drops a player from the roster and their team. While cards are
// still being submitted, the player's hand and submissions go back to the
// deck so the pool stays sized to the roster.
func (g *Game) RemovePlayer(name string) error {
	p, err := g.player(name)
	if err != nil {
		return err
	}

	if g.Phase == PhaseSubmitting {
		g.RemainingDeck = append(g.RemainingDeck, p.Hand...)
		for _, c := range p.Submitted {
			if i := indexOfTerm(g.GamePool, c.Term); i >= 0 {
				g.GamePool = slices.Delete(g.GamePool, i, i+1)
			}
			g.RemainingDeck = append(g.RemainingDeck, c)
		}
	}

	delete(g.Players, name)
	g.joinOrder = slices.DeleteFunc(g.joinOrder, func(n string) bool { return n == name })

	if t, ok := g.Teams[p.Team]; ok {
		t.Members = slices.DeleteFunc(t.Members, func(n string) bool { return n == name })
	}

	return nil
}

// FirstPlayer returns the earliest joiner still in the session.
func (g *Game) FirstPlayer() (string, bool) {
	if len(g.joinOrder) == 0 {
		return "", false
	}

	return g.joinOrder[0], true
}

func (g *Game) player(name string) (*Player, error) {
	p, ok := g.Players[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlayer, name)
	}

	return p, nil
}

// StartRound begins the first round once every player has submitted, or the
// next round after the previous one drained.
func (g *Game) StartRound() error {
	switch g.Phase {
	case PhaseSubmitting:
		if !g.AllSubmitted() {
			return ErrNotReady
		}
		if _, ok := g.CurrentActor(); !ok {
			return fmt.Errorf("%w: no team has any players", ErrNotReady)
		}
	case PhaseRoundOver:
		g.CurrentRound++
	default:
		return fmt.Errorf("%w: cannot start a round while %s", ErrWrongPhase, g.Phase)
	}

	g.beginRound()

	return nil
}

func (g *Game) beginRound() {
	g.ActivePool = slices.Clone(g.GamePool)
	g.rng.Shuffle(len(g.ActivePool), func(i, j int) {
		g.ActivePool[i], g.ActivePool[j] = g.ActivePool[j], g.ActivePool[i]
	})

	// The opening round keeps join order; later rounds rotate.
	if g.CurrentRound > 1 {
		g.rotateTeams()
	}

	g.TurnOrder = BuildTurnOrder(g.Teams, g.teamOrder)
	g.CurrentTurnIndex = 0
	g.TurnTimeLeft = g.Rules.TurnSeconds
	g.CardsGuessed = 0
	g.Paused = false
	g.Phase = PhaseRoundActive
}

// Guess removes the first active card matching term and credits the actor's
// team. A term no longer in play is not an error: it reports false and
// changes nothing.
func (g *Game) Guess(term, actor string) (Card, bool, error) {
	p, err := g.player(actor)
	if err != nil {
		return Card{}, false, err
	}

	t, ok := g.Teams[p.Team]
	if !ok {
		return Card{}, false, fmt.Errorf("%w: %q is not on a team", ErrUnknownPlayer, actor)
	}

	if g.Phase != PhaseRoundActive {
		return Card{}, false, nil
	}

	i := indexOfTerm(g.ActivePool, term)
	if i < 0 {
		return Card{}, false, nil
	}

	card := g.ActivePool[i]
	g.ActivePool = slices.Delete(g.ActivePool, i, i+1)
	g.CardsGuessed++
	t.Score += card.Points

	return card, true, nil
}

// Skip sends the matching card to the back of the active pool.
func (g *Game) Skip(term string) bool {
	if g.Phase != PhaseRoundActive {
		return false
	}

	i := indexOfTerm(g.ActivePool, term)
	if i < 0 {
		return false
	}

	card := g.ActivePool[i]
	g.ActivePool = append(slices.Delete(g.ActivePool, i, i+1), card)

	return true
}

// NextTurn hands play to the next actor. When the active pool is empty it
// moves on to the next round first. ok is false once no rounds remain, and
// also when no team has anyone left to act; only the former sets
// PhaseGameOver.
func (g *Game) NextTurn() (TurnSlot, bool) {
	if g.Phase == PhaseGameOver {
		return TurnSlot{}, false
	}
	if _, ok := g.CurrentActor(); !ok {
		return TurnSlot{}, false
	}

	g.CurrentTurnIndex++
	g.TurnTimeLeft = g.Rules.TurnSeconds
	g.CardsGuessed = 0

	if g.IsRoundOver() {
		if g.CurrentRound >= g.Rules.TotalRounds {
			g.Phase = PhaseGameOver
			return TurnSlot{}, false
		}

		g.CurrentRound++
		g.beginRound()

		if g.IsRoundOver() {
			g.Phase = PhaseGameOver
			return TurnSlot{}, false
		}
	}

	return g.CurrentActor()
}

func (g *Game) IsRoundOver() bool {
	return len(g.ActivePool) == 0
}

// FinishRound closes a drained round and reports whether that was the last.
func (g *Game) FinishRound() bool {
	if g.CurrentRound >= g.Rules.TotalRounds {
		g.Phase = PhaseGameOver
		return true
	}

	g.Phase = PhaseRoundOver

	return false
}

type Standing struct {
	Team  string `json:"team_name"`
	Score int    `json:"score"`
}

// Standings ranks every team by score, highest first, breaking ties by name.
func (g *Game) Standings() []Standing {
	out := make([]Standing, 0, len(g.Teams))
	for _, name := range g.teamOrder {
		out = append(out, Standing{Team: name, Score: g.Teams[name].Score})
	}

	slices.SortStableFunc(out, func(a, b Standing) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Team, b.Team)
	})

	return out
}

type GameResult struct {
	Winner        Standing
	RunnerUp      Standing
	HasRunnerUp   bool
	FullStandings []Standing
}

func (g *Game) Result() GameResult {
	s := g.Standings()
	r := GameResult{FullStandings: s}

	if len(s) > 0 {
		r.Winner = s[0]
	}
	if len(s) > 1 {
		r.RunnerUp = s[1]
		r.HasRunnerUp = true
	}

	return r
}

// scoresSummary renders the per-team score line shown between rounds.
func (g *Game) scoresSummary() string {
	var b strings.Builder

	for _, name := range g.teamOrder {
		fmt.Fprintf(&b, "The %s have %d points! ", name, g.Teams[name].Score)
	}

	return strings.TrimSpace(b.String())
}

// teammates returns the guessers for an actor's turn.
func (g *Game) teammates(team, actor string) []string {
	t, ok := g.Teams[team]
	if !ok {
		return []string{}
	}

	out := make([]string, 0, len(t.Members))
	for _, m := range t.Members {
		if m != actor {
			out = append(out, m)
		}
	}

	return out
}

func indexOfTerm(cards []Card, term string) int {
	return slices.IndexFunc(cards, func(c Card) bool { return c.Term == term })
}
