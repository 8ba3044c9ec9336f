package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// turnLoop is one running turn. interrupted is written by the loop before
// done is closed and read by whoever cancelled it after <-done.
type turnLoop struct {
	cancel      context.CancelFunc
	done        chan struct{}
	slot        TurnSlot
	interrupted bool
}

// startTurnLocked announces the current actor's turn and launches its timer.
// Callers hold turnMu and mu, and no other loop may be running.
func (s *Session) startTurnLocked() {
	g := s.game

	slot, ok := g.CurrentActor()
	if !ok {
		log.Warn().Str("session", s.id).Msg("no actor available, turn not started")
		return
	}

	g.CardsGuessed = 0

	s.publishGameStateLocked()
	s.publishLocked(TurnStartedMessage{
		Type:         "turn_started",
		TeamName:     slot.Team,
		ActorName:    slot.Actor,
		TimeLimit:    g.Rules.TurnSeconds,
		GuesserNames: g.teammates(slot.Team, slot.Actor),
	})

	log.Debug().
		Str("session", s.id).
		Str("team", slot.Team).
		Str("actor", slot.Actor).
		Int("seconds", g.TurnTimeLeft).
		Msg("turn started")

	// Drop a wake left over from the previous turn.
	select {
	case <-s.wake:
	default:
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &turnLoop{
		cancel: cancel,
		done:   make(chan struct{}),
		slot:   slot,
	}

	s.turn = t
	s.ticking = true

	go s.runTurn(ctx, t)
}

// stopTurn cancels the running loop and waits for it to exit. Callers hold
// turnMu but not mu. The stopped loop is returned, or nil if none was set.
func (s *Session) stopTurn() *turnLoop {
	t := s.turn
	if t == nil {
		return nil
	}

	t.cancel()
	<-t.done
	s.turn = nil

	return t
}

// nudge wakes a sleeping loop so a drained pool ends the turn without waiting
// out the tick.
func (s *Session) nudge() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Session) runTurn(ctx context.Context, t *turnLoop) {
	defer close(t.done)
	defer t.cancel()

	for {
		s.mu.Lock()

		if ctx.Err() != nil {
			t.interrupted = true
			s.ticking = false
			s.mu.Unlock()
			return
		}

		g := s.game
		if g.TurnTimeLeft <= 0 || g.IsRoundOver() {
			s.ticking = false
			s.endTurnLocked(t.slot)
			s.mu.Unlock()
			return
		}

		wait := s.timing.TickInterval
		if g.Paused {
			wait = s.timing.PausePoll
		} else {
			s.publishLocked(TimerMessage{
				Type:      "update_timer",
				TimeLeft:  g.TurnTimeLeft,
				ActorName: t.slot.Actor,
				TeamName:  t.slot.Team,
			})
			g.TurnTimeLeft--
		}

		s.mu.Unlock()

		if !s.sleep(ctx, wait) {
			s.mu.Lock()
			t.interrupted = true
			s.ticking = false
			s.mu.Unlock()
			return
		}
	}
}

// sleep waits for d on the session clock. A wake cuts it short only if the
// round has actually drained. It reports false when ctx is cancelled.
func (s *Session) sleep(ctx context.Context, d time.Duration) bool {
	timer := s.clock.NewTimer(d)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.Chan():
			return true
		case <-s.wake:
			s.mu.Lock()
			over := s.game.IsRoundOver()
			s.mu.Unlock()

			if over {
				return true
			}
		}
	}
}

// endTurnLocked reports a turn that ran out of time or cards.
func (s *Session) endTurnLocked(slot TurnSlot) {
	s.publishLocked(TurnEndedMessage{
		Type:      "turn_ended",
		ActorName: slot.Actor,
		TeamName:  slot.Team,
		TimeLeft:  max(s.game.TurnTimeLeft, 0),
	})

	log.Debug().
		Str("session", s.id).
		Str("actor", slot.Actor).
		Int("time_left", s.game.TurnTimeLeft).
		Msg("turn ended")

	if s.game.IsRoundOver() {
		s.closeRoundLocked()
	}
}

// closeRoundLocked scores a drained round and either ends the game or
// invites the next round.
func (s *Session) closeRoundLocked() {
	g := s.game

	s.publishLocked(RoundOverMessage{
		Type:        "round_over",
		RoundNumber: g.CurrentRound,
		Scores:      g.scoresSummary(),
		Standings:   g.Standings(),
	})

	if g.FinishRound() {
		log.Info().Str("session", s.id).Msg("game over")
		s.publishLocked(newGameOverMessage(g.Result()))
		return
	}

	log.Info().Str("session", s.id).Int("round", g.CurrentRound).Msg("round over")
	s.publishLocked(RoundReadyMessage{Type: "round_ready", RoundNumber: g.CurrentRound + 1})
}
