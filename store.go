package main

import (
	"crypto/rand"
	"fmt"
	mrand "math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Store holds every live session keyed by id. Its lock guards only the map;
// when both are needed it is taken before any session lock.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session

	deck        []Card
	rules       Rules
	timing      Timing
	clock       clockwork.Clock
	out         Broadcaster
	idleTimeout time.Duration
	newRand     func() *mrand.Rand

	playerTimeout time.Duration
	departures    map[seat]*departure
}

// seat names one player in one session.
type seat struct {
	session string
	player  string
}

// departure is a pending removal of a disconnected player.
type departure struct {
	timer clockwork.Timer
}

type StoreOption func(*Store)

func WithClock(c clockwork.Clock) StoreOption {
	return func(s *Store) { s.clock = c }
}

func WithRules(r Rules) StoreOption {
	return func(s *Store) { s.rules = r }
}

func WithTiming(t Timing) StoreOption {
	return func(s *Store) { s.timing = t }
}

// WithIdleTimeout evicts sessions nobody has touched for d. Zero disables it.
func WithIdleTimeout(d time.Duration) StoreOption {
	return func(s *Store) { s.idleTimeout = d }
}

// WithPlayerTimeout removes players whose last socket closed d ago, unless
// they join again first. Zero keeps them until they leave.
func WithPlayerTimeout(d time.Duration) StoreOption {
	return func(s *Store) { s.playerTimeout = d }
}

// WithRand overrides the per-session random source, mostly for tests.
func WithRand(f func() *mrand.Rand) StoreOption {
	return func(s *Store) { s.newRand = f }
}

func NewStore(deck []Card, out Broadcaster, opts ...StoreOption) *Store {
	s := &Store{
		sessions:   make(map[string]*Session),
		departures: make(map[seat]*departure),
		deck:       deck,
		rules:      DefaultRules(),
		timing:     DefaultTiming(),
		clock:      clockwork.NewRealClock(),
		out:        out,
		newRand: func() *mrand.Rand {
			return mrand.New(mrand.NewPCG(mrand.Uint64(), mrand.Uint64()))
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Join adds a player to a session, creating the session on first contact. A
// disconnected player joining again before their timeout gets their seat back,
// even mid-game.
func (s *Store) Join(id, name, team string) (*Session, string, error) {
	if id == "" {
		return nil, "", fmt.Errorf("%w: session id is required", ErrInvalidCommand)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		g := NewGame(id, s.deck, s.rules, s.newRand())
		sess = newSession(id, g, s.clock, s.out, s.timing)
		s.sessions[id] = sess

		log.Info().Str("session", id).Int("deck", len(s.deck)).Msg("session created")
	}

	key := seat{id, strings.TrimSpace(name)}
	if d, pending := s.departures[key]; pending {
		d.timer.Stop()
		delete(s.departures, key)

		if sess.Rejoin(key.player) {
			return sess, key.player, nil
		}
	}

	final, err := sess.Join(name, team)
	if err != nil {
		if !ok {
			delete(s.sessions, id)
		}
		return nil, "", err
	}

	return sess, final, nil
}

func (s *Store) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSession, id)
	}

	return sess, nil
}

// Leave removes a player and drops the session once nobody is left.
func (s *Store) Leave(id, name string) (string, error) {
	s.mu.Lock()
	removed, ended, err := s.leaveLocked(id, name)
	s.mu.Unlock()

	if ended != nil {
		ended.Close()
		log.Info().Str("session", id).Msg("session ended, no players left")
	}

	return removed, err
}

// leaveLocked removes the player and, if the session is now empty, unlists
// it and returns it for the caller to close outside the store lock.
func (s *Store) leaveLocked(id, name string) (string, *Session, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownSession, id)
	}

	removed, remaining, err := sess.Leave(name)
	if err != nil {
		return "", nil, err
	}

	if d, pending := s.departures[seat{id, removed}]; pending {
		d.timer.Stop()
		delete(s.departures, seat{id, removed})
	}

	if remaining > 0 {
		return removed, nil, nil
	}

	delete(s.sessions, id)

	return removed, sess, nil
}

// Disconnected starts the player timeout for a player whose last socket has
// closed. Joining again under the same name before it fires keeps the seat.
func (s *Store) Disconnected(id, name string) {
	if s.playerTimeout <= 0 || name == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := seat{id, name}
	if old, pending := s.departures[key]; pending {
		old.timer.Stop()
	}

	d := &departure{}
	d.timer = s.clock.AfterFunc(s.playerTimeout, func() { s.depart(key, d) })
	s.departures[key] = d

	log.Debug().Str("session", id).Str("player", name).Dur("timeout", s.playerTimeout).Msg("player disconnected")
}

func (s *Store) depart(key seat, d *departure) {
	s.mu.Lock()

	if s.departures[key] != d {
		s.mu.Unlock()
		return
	}
	delete(s.departures, key)

	removed, ended, err := s.leaveLocked(key.session, key.player)
	s.mu.Unlock()

	if err != nil {
		log.Debug().Err(err).Str("session", key.session).Str("player", key.player).Msg("player already gone")
		return
	}

	log.Info().Str("session", key.session).Str("player", removed).Msg("removed disconnected player")

	if ended != nil {
		ended.Close()
		log.Info().Str("session", key.session).Msg("session ended, no players left")
	}
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.sessions)
}

// NewID returns a random 8-character id not used by any live session.
func (s *Store) NewID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	for {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}

		out := make([]byte, 8)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		id := string(out)

		s.mu.Lock()
		_, exists := s.sessions[id]
		s.mu.Unlock()

		if !exists {
			return id
		}
	}
}

// Reap evicts sessions idle since before now minus the idle timeout and
// returns their ids.
func (s *Store) Reap() []string {
	if s.idleTimeout <= 0 {
		return nil
	}

	cutoff := s.clock.Now().Add(-s.idleTimeout)

	var stale []*Session

	s.mu.Lock()
	for id, sess := range s.sessions {
		if sess.idleSince().Before(cutoff) {
			delete(s.sessions, id)
			stale = append(stale, sess)
		}
	}
	s.mu.Unlock()

	ids := make([]string, 0, len(stale))
	for _, sess := range stale {
		sess.Close()
		ids = append(ids, sess.ID())

		log.Info().Str("session", sess.ID()).Msg("session reaped after idle timeout")
	}

	return ids
}

// reaperLoop runs Reap every half timeout until done is closed.
func (s *Store) reaperLoop(done <-chan struct{}, onReap func(ids []string)) {
	if s.idleTimeout <= 0 {
		return
	}

	ticker := s.clock.NewTicker(s.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.Chan():
			if ids := s.Reap(); len(ids) > 0 && onReap != nil {
				onReap(ids)
			}
		}
	}
}
