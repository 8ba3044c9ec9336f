package main

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Timing sets how fast game time runs in wall-clock terms.
type Timing struct {
	TickInterval time.Duration // real time per game second
	PausePoll    time.Duration // how often a paused turn re-checks
}

func DefaultTiming() Timing {
	return Timing{
		TickInterval: time.Second,
		PausePoll:    300 * time.Millisecond,
	}
}

// Session is one running game. mu guards game and every field below it;
// turnMu is held while a turn loop is cancelled or started so that at most
// one loop ever runs. Lock order is turnMu, then mu.
type Session struct {
	id     string
	clock  clockwork.Clock
	out    Broadcaster
	timing Timing

	turnMu sync.Mutex
	turn   *turnLoop

	mu         sync.Mutex
	game       *Game
	ticking    bool
	lastActive time.Time

	wake chan struct{}
}

func newSession(id string, g *Game, clock clockwork.Clock, out Broadcaster, timing Timing) *Session {
	return &Session{
		id:         id,
		clock:      clock,
		out:        out,
		timing:     timing,
		game:       g,
		lastActive: clock.Now(),
		wake:       make(chan struct{}, 1),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) publishLocked(msg any) {
	s.out.Publish(s.id, msg)
}

func (s *Session) touchLocked() {
	s.lastActive = s.clock.Now()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastActive
}

// Join adds a player and returns the name they were registered under.
func (s *Session) Join(name, team string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touchLocked()

	final, err := s.game.AddPlayer(name, team)
	if err != nil {
		return "", err
	}

	log.Info().
		Str("session", s.id).
		Str("player", final).
		Str("team", strings.TrimSpace(team)).
		Msg("player joined")

	s.publishStatusLocked()

	return final, nil
}

// Leave removes the named player, or the earliest joiner when name is empty.
// It returns who was removed and how many players remain.
func (s *Session) Leave(name string) (string, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touchLocked()

	if name == "" {
		first, ok := s.game.FirstPlayer()
		if !ok {
			return "", 0, nil
		}
		name = first
	}

	if err := s.game.RemovePlayer(name); err != nil {
		return "", len(s.game.Players), err
	}

	log.Info().Str("session", s.id).Str("player", name).Msg("player left")

	if s.game.Phase == PhaseSubmitting && len(s.game.Players) > 0 {
		s.publishStatusLocked()
	}

	return name, len(s.game.Players), nil
}

// Rejoin reattaches a returning player to their seat. It reports false if
// the player is no longer in the session.
func (s *Session) Rejoin(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.game.player(name); err != nil {
		return false
	}

	s.touchLocked()
	log.Info().Str("session", s.id).Str("player", name).Msg("player reconnected")

	if s.game.Phase == PhaseSubmitting {
		s.publishStatusLocked()
	}

	return true
}

// TeamOf returns the team the player is on, or "" if none.
func (s *Session) TeamOf(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.game.player(name)
	if err != nil {
		return ""
	}

	return p.Team
}

func (s *Session) DrawCards(name string) (HandMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touchLocked()

	if _, err := s.game.Draw(name); err != nil {
		return HandMessage{}, err
	}

	return s.handLocked(name), nil
}

func (s *Session) RefreshHand(name string) (HandMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touchLocked()

	if _, err := s.game.Refresh(name); err != nil {
		return HandMessage{}, err
	}

	return s.handLocked(name), nil
}

func (s *Session) SubmitSelection(name string, terms []string) (HandMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touchLocked()

	res, err := s.game.Submit(name, terms)
	if err != nil {
		return HandMessage{}, err
	}

	log.Debug().
		Str("session", s.id).
		Str("player", name).
		Int("moved", res.Moved).
		Int("remaining", res.Remaining).
		Msg("cards submitted")

	s.publishStatusLocked()

	return s.handLocked(name), nil
}

func (s *Session) SubmitCustomCard(name string, card Card) (HandMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touchLocked()

	res, err := s.game.SubmitCustom(name, card)
	if err != nil {
		return HandMessage{}, err
	}

	log.Debug().
		Str("session", s.id).
		Str("player", name).
		Int("remaining", res.Remaining).
		Msg("custom card submitted")

	s.publishStatusLocked()

	return s.handLocked(name), nil
}

func (s *Session) handLocked(name string) HandMessage {
	p := s.game.Players[name]

	return HandMessage{
		Type:      "hand",
		Cards:     slices.Clone(p.Hand),
		Submitted: len(p.Submitted),
		Remaining: s.game.submissionsLeft(p),
		Done:      s.game.submissionsLeft(p) == 0,
	}
}

func (s *Session) publishStatusLocked() {
	s.publishLocked(SubmissionStatusMessage{
		Type:         "submission_status",
		AllSubmitted: s.game.AllSubmitted(),
		Players:      s.game.SubmissionStatus(),
	})
}

// StartRound opens the first round once all cards are in, or the next round
// after round_ready, and starts the first turn.
func (s *Session) StartRound(starter string) error {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	s.mu.Lock()
	phase := s.game.Phase
	s.mu.Unlock()

	if phase != PhaseSubmitting && phase != PhaseRoundOver {
		return fmt.Errorf("%w: cannot start a round while %s", ErrWrongPhase, phase)
	}

	// A loop that closed the previous round may still be on its way out.
	s.stopTurn()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.touchLocked()
	g := s.game

	if starter != "" {
		if _, err := g.player(starter); err != nil {
			return err
		}
	}

	if err := g.StartRound(); err != nil {
		return err
	}

	log.Info().
		Str("session", s.id).
		Int("round", g.CurrentRound).
		Int("cards", len(g.ActivePool)).
		Msg("round started")

	s.publishRoundStartedLocked(starter)
	s.startTurnLocked()

	return nil
}

func (s *Session) publishRoundStartedLocked(starter string) {
	g := s.game
	slot, _ := g.CurrentActor()

	s.publishLocked(RoundStartedMessage{
		Type:             "round_started",
		RoundNumber:      g.CurrentRound,
		TotalRounds:      g.Rules.TotalRounds,
		ActivePoolLength: len(g.ActivePool),
		TeamName:         slot.Team,
		ActorName:        slot.Actor,
		PlayerName:       starter,
		TurnOrder:        slices.Clone(g.TurnOrder),
		NextActors:       g.UpcomingActors(g.lapLength()),
	})
}

// GetCard records a correct guess by the actor's team. Cards already gone
// from the pool are ignored.
func (s *Session) GetCard(actor, term string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touchLocked()
	g := s.game

	card, ok, err := g.Guess(term, actor)
	if err != nil {
		return err
	}
	if !ok {
		log.Debug().Str("session", s.id).Str("term", term).Msg("ignoring stale guess")
		return nil
	}

	log.Debug().
		Str("session", s.id).
		Str("actor", actor).
		Str("term", card.Term).
		Int("points", card.Points).
		Msg("card guessed")

	s.publishGameStateLocked()

	if g.IsRoundOver() {
		if s.ticking {
			s.nudge()
		} else {
			s.closeRoundLocked()
		}
	}

	return nil
}

func (s *Session) SkipCard(term string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touchLocked()

	if s.game.Skip(term) {
		s.publishGameStateLocked()
	}
}

func (s *Session) publishGameStateLocked() {
	s.publishLocked(GameStateMessage{
		Type:         "update_game_state",
		ActivePool:   slices.Clone(s.game.ActivePool),
		GuessedCount: s.game.CardsGuessed,
	})
}

// StartNextTurn forfeits whatever remains of the current turn and hands play
// to the next actor, moving on to the next round if the pool is empty.
func (s *Session) StartNextTurn() error {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	prev := s.stopTurn()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.touchLocked()
	g := s.game

	if g.Phase != PhaseRoundActive && g.Phase != PhaseRoundOver {
		return ErrWrongPhase
	}

	if prev != nil && prev.interrupted {
		s.publishLocked(TurnEndedMessage{
			Type:      "turn_ended",
			ActorName: prev.slot.Actor,
			TeamName:  prev.slot.Team,
			TimeLeft:  g.TurnTimeLeft,
		})
	}

	// The cancelled loop may not have seen the last guess drain the pool.
	if g.Phase == PhaseRoundActive && g.IsRoundOver() {
		s.closeRoundLocked()
		if g.Phase == PhaseGameOver {
			return nil
		}
	}

	round := g.CurrentRound
	g.Paused = false

	if _, ok := g.NextTurn(); !ok {
		if g.Phase != PhaseGameOver {
			return fmt.Errorf("%w: no team has anyone left to act", ErrNotReady)
		}

		log.Info().Str("session", s.id).Msg("game over")
		s.publishLocked(newGameOverMessage(g.Result()))
		return nil
	}

	if g.CurrentRound != round {
		log.Info().Str("session", s.id).Int("round", g.CurrentRound).Msg("round started")
		s.publishRoundStartedLocked("")
	}

	s.startTurnLocked()

	return nil
}

func (s *Session) Pause() error  { return s.setPaused(true) }
func (s *Session) Resume() error { return s.setPaused(false) }

func (s *Session) setPaused(paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touchLocked()

	if s.game.Phase != PhaseRoundActive {
		return ErrWrongPhase
	}

	s.game.Paused = paused
	s.publishLocked(PauseMessage{Type: "update_pause", Paused: paused})

	return nil
}

// Close stops any running turn loop. The session must not be used afterwards.
func (s *Session) Close() {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	s.stopTurn()
}

type SessionState struct {
	ID           string         `json:"id"`
	Phase        Phase          `json:"phase"`
	Round        int            `json:"round"`
	TotalRounds  int            `json:"total_rounds"`
	Paused       bool           `json:"paused"`
	TurnTimeLeft int            `json:"turn_time_left"`
	GamePool     int            `json:"game_pool"`
	ActivePool   int            `json:"active_pool"`
	DeckLeft     int            `json:"deck_left"`
	AllSubmitted bool           `json:"all_submitted"`
	Players      []PlayerStatus `json:"players"`
	Standings    []Standing     `json:"standings"`
	TurnOrder    []TurnSlot     `json:"turn_order"`
	NextActors   []TurnSlot     `json:"next_actors,omitempty"`
	CurrentActor *TurnSlot      `json:"current_actor,omitempty"`
}

func (s *Session) Snapshot() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.game
	st := SessionState{
		ID:           s.id,
		Phase:        g.Phase,
		Round:        g.CurrentRound,
		TotalRounds:  g.Rules.TotalRounds,
		Paused:       g.Paused,
		TurnTimeLeft: g.TurnTimeLeft,
		GamePool:     len(g.GamePool),
		ActivePool:   len(g.ActivePool),
		DeckLeft:     len(g.RemainingDeck),
		AllSubmitted: g.AllSubmitted(),
		Players:      g.SubmissionStatus(),
		Standings:    g.Standings(),
		TurnOrder:    slices.Clone(g.TurnOrder),
	}

	if g.Phase == PhaseRoundActive {
		if slot, ok := g.CurrentActor(); ok {
			st.CurrentActor = &slot
		}
		st.NextActors = g.UpcomingActors(g.lapLength())
	}

	return st
}
