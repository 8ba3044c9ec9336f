package main

import (
	"fmt"
	"strings"
)

type Card struct {
	Term       string `json:"term" yaml:"term"`
	Definition string `json:"definition" yaml:"definition"`
	Points     int    `json:"points" yaml:"points"`
}

func (c Card) validate() error {
	if strings.TrimSpace(c.Term) == "" {
		return fmt.Errorf("%w: term is required", ErrInvalidCard)
	}
	if c.Points < 1 {
		return fmt.Errorf("%w: %q must be worth at least 1 point", ErrInvalidCard, c.Term)
	}
	return nil
}

type SubmitResult struct {
	Moved     int
	Remaining int
	Done      bool
}

// takeRandom samples n cards without replacement from the remaining deck.
func (g *Game) takeRandom(n int) ([]Card, error) {
	if n > len(g.RemainingDeck) {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrInsufficientDeck, n, len(g.RemainingDeck))
	}

	drawn := make([]Card, 0, n)
	for range n {
		i := g.rng.IntN(len(g.RemainingDeck))
		last := len(g.RemainingDeck) - 1

		drawn = append(drawn, g.RemainingDeck[i])
		g.RemainingDeck[i] = g.RemainingDeck[last]
		g.RemainingDeck = g.RemainingDeck[:last]
	}

	return drawn, nil
}

// Draw deals a full hand to a player who doesn't hold one yet. Players with a
// hand, or with their submissions complete, keep what they have.
func (g *Game) Draw(name string) ([]Card, error) {
	p, err := g.player(name)
	if err != nil {
		return nil, err
	}

	if len(p.Hand) > 0 || g.submissionsLeft(p) == 0 || g.Phase != PhaseSubmitting {
		return p.Hand, nil
	}

	hand, err := g.takeRandom(g.Rules.HandSize)
	if err != nil {
		return nil, err
	}
	p.Hand = hand

	return p.Hand, nil
}

// Refresh returns the player's hand to the deck and deals a new one of
// HandSize minus the cards already submitted. Players done submitting hold
// no hand and cannot refresh.
func (g *Game) Refresh(name string) ([]Card, error) {
	p, err := g.player(name)
	if err != nil {
		return nil, err
	}
	if g.Phase != PhaseSubmitting {
		return nil, fmt.Errorf("%w: cards are locked in", ErrWrongPhase)
	}
	if g.submissionsLeft(p) == 0 {
		return nil, fmt.Errorf("%w: %s has already submitted every card", ErrOverQuota, p.Name)
	}

	n := max(g.Rules.HandSize-len(p.Submitted), 0)
	if n > len(g.RemainingDeck)+len(p.Hand) {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrInsufficientDeck, n, len(g.RemainingDeck)+len(p.Hand))
	}

	g.RemainingDeck = append(g.RemainingDeck, p.Hand...)
	p.Hand = nil

	hand, err := g.takeRandom(n)
	if err != nil {
		return nil, err
	}
	p.Hand = hand

	return p.Hand, nil
}

// Submit commits the hand cards whose terms are selected. Unselected cards
// stay in hand and are topped up from the deck until the quota is met.
func (g *Game) Submit(name string, selected []string) (SubmitResult, error) {
	p, err := g.player(name)
	if err != nil {
		return SubmitResult{}, err
	}
	if g.Phase != PhaseSubmitting {
		return SubmitResult{}, fmt.Errorf("%w: cards are locked in", ErrWrongPhase)
	}

	left := g.submissionsLeft(p)
	if len(selected) > left {
		return SubmitResult{}, fmt.Errorf("%w: select up to %d cards", ErrOverQuota, left)
	}

	want := make(map[string]struct{}, len(selected))
	for _, term := range selected {
		want[term] = struct{}{}
	}

	var chosen, kept []Card
	for _, c := range p.Hand {
		if _, ok := want[c.Term]; ok {
			chosen = append(chosen, c)
		} else {
			kept = append(kept, c)
		}
	}

	done := len(p.Submitted)+len(chosen) >= g.Rules.Submissions
	if !done && len(chosen) > len(g.RemainingDeck) {
		return SubmitResult{}, fmt.Errorf("%w: need %d, have %d", ErrInsufficientDeck, len(chosen), len(g.RemainingDeck))
	}

	p.Submitted = append(p.Submitted, chosen...)
	g.GamePool = append(g.GamePool, chosen...)

	if done {
		p.Hand = kept
		g.retireHand(p)
	} else {
		fresh, err := g.takeRandom(len(chosen))
		if err != nil {
			return SubmitResult{}, err
		}
		p.Hand = append(fresh, kept...)
	}

	return SubmitResult{Moved: len(chosen), Remaining: g.submissionsLeft(p), Done: done}, nil
}

// SubmitCustom commits a player-written card straight to the game pool.
func (g *Game) SubmitCustom(name string, card Card) (SubmitResult, error) {
	p, err := g.player(name)
	if err != nil {
		return SubmitResult{}, err
	}
	if g.Phase != PhaseSubmitting {
		return SubmitResult{}, fmt.Errorf("%w: cards are locked in", ErrWrongPhase)
	}

	card.Term = strings.TrimSpace(card.Term)
	if err := card.validate(); err != nil {
		return SubmitResult{}, err
	}
	if g.submissionsLeft(p) == 0 {
		return SubmitResult{}, fmt.Errorf("%w: all %d cards already submitted", ErrOverQuota, g.Rules.Submissions)
	}
	if _, dup := g.terms[card.Term]; dup {
		return SubmitResult{}, fmt.Errorf("%w: %q", ErrDuplicateTerm, card.Term)
	}

	g.terms[card.Term] = struct{}{}
	g.customCards++
	p.Submitted = append(p.Submitted, card)
	g.GamePool = append(g.GamePool, card)

	done := g.submissionsLeft(p) == 0
	if done {
		g.retireHand(p)
	}

	return SubmitResult{Moved: 1, Remaining: g.submissionsLeft(p), Done: done}, nil
}

// retireHand returns a finished player's unused cards to the deck.
func (g *Game) retireHand(p *Player) {
	g.RemainingDeck = append(g.RemainingDeck, p.Hand...)
	p.Hand = nil
}

func (g *Game) submissionsLeft(p *Player) int {
	return max(g.Rules.Submissions-len(p.Submitted), 0)
}

// AllSubmitted reports whether every player has committed exactly their quota.
func (g *Game) AllSubmitted() bool {
	if len(g.Players) == 0 {
		return false
	}

	for _, p := range g.Players {
		if len(p.Submitted) != g.Rules.Submissions {
			return false
		}
	}

	return len(g.GamePool) == g.Rules.Submissions*len(g.Players)
}

type PlayerStatus struct {
	Name      string `json:"name"`
	Team      string `json:"team_name"`
	Submitted int    `json:"submitted"`
	Done      bool   `json:"done"`
}

// SubmissionStatus lists players in join order with their progress.
func (g *Game) SubmissionStatus() []PlayerStatus {
	out := make([]PlayerStatus, 0, len(g.joinOrder))
	for _, name := range g.joinOrder {
		p := g.Players[name]
		out = append(out, PlayerStatus{
			Name:      p.Name,
			Team:      p.Team,
			Submitted: len(p.Submitted),
			Done:      g.submissionsLeft(p) == 0,
		})
	}

	return out
}
