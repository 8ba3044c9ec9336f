package main

type TurnSlot struct {
	Team  string `json:"team_name"`
	Actor string `json:"actor_name"`
}

// BuildTurnOrder interleaves teams round-robin: the first member of each
// team in order, then the second of each, and so on. Teams that run out of
// members simply stop contributing.
func BuildTurnOrder(teams map[string]*Team, order []string) []TurnSlot {
	queues := make(map[string][]string, len(order))
	total := 0
	for _, name := range order {
		t, ok := teams[name]
		if !ok || len(t.Members) == 0 {
			continue
		}
		queues[name] = append([]string(nil), t.Members...)
		total += len(t.Members)
	}

	out := make([]TurnSlot, 0, total)
	for len(out) < total {
		for _, name := range order {
			q := queues[name]
			if len(q) == 0 {
				continue
			}
			out = append(out, TurnSlot{Team: name, Actor: q[0]})
			queues[name] = q[1:]
		}
	}

	return out
}

// rotateTeams moves the leading team to the back and reshuffles every team's
// members, so no team is always last and no member always opens.
func (g *Game) rotateTeams() {
	if len(g.teamOrder) > 1 {
		g.teamOrder = append(g.teamOrder[1:], g.teamOrder[0])
	}

	for _, name := range g.teamOrder {
		m := g.Teams[name].Members
		g.rng.Shuffle(len(m), func(i, j int) { m[i], m[j] = m[j], m[i] })
	}
}

// CurrentActor resolves the turn index against live team membership rather
// than the TurnOrder snapshot, so players leaving mid-game never break it.
func (g *Game) CurrentActor() (TurnSlot, bool) {
	return g.actorAt(g.CurrentTurnIndex)
}

// UpcomingActors lists who acts in the next n turns, the current one first.
// Unlike TurnOrder it repeats members of short teams, as play does.
func (g *Game) UpcomingActors(n int) []TurnSlot {
	out := make([]TurnSlot, 0, n)
	for i := range n {
		slot, ok := g.actorAt(g.CurrentTurnIndex + i)
		if !ok {
			break
		}
		out = append(out, slot)
	}

	return out
}

// lapLength is the number of turns it takes every member of every team to act
// at least once.
func (g *Game) lapLength() int {
	teams, largest := 0, 0
	for _, name := range g.teamOrder {
		if n := len(g.Teams[name].Members); n > 0 {
			teams++
			largest = max(largest, n)
		}
	}

	return teams * largest
}

func (g *Game) actorAt(i int) (TurnSlot, bool) {
	active := make([]*Team, 0, len(g.teamOrder))
	for _, name := range g.teamOrder {
		if t := g.Teams[name]; len(t.Members) > 0 {
			active = append(active, t)
		}
	}

	if len(active) == 0 {
		return TurnSlot{}, false
	}

	t := active[i%len(active)]
	actor := t.Members[(i/len(active))%len(t.Members)]

	return TurnSlot{Team: t.Name, Actor: actor}, true
}
