package main

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const sendBuffer = 64

// Client is one WebSocket connection attached to a session.
type Client struct {
	id        uuid.UUID
	conn      *websocket.Conn
	send      chan any
	sessionID string

	// player is written under Rooms.mu by setPlayer once the client joins.
	player string
}

func newClient(conn *websocket.Conn, sessionID string) *Client {
	return &Client{
		id:        uuid.New(),
		conn:      conn,
		send:      make(chan any, sendBuffer),
		sessionID: sessionID,
	}
}

// Rooms routes session notifications to the sockets subscribed to them. A
// client whose buffer is full is dropped so a slow reader never stalls the
// session publishing to it.
type Rooms struct {
	mu    sync.Mutex
	rooms map[string]map[*Client]bool
}

func NewRooms() *Rooms {
	return &Rooms{rooms: make(map[string]map[*Client]bool)}
}

func (r *Rooms) add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[c.sessionID]
	if !ok {
		room = make(map[*Client]bool)
		r.rooms[c.sessionID] = room
	}
	room[c] = true
}

// remove detaches c and closes its send channel. Removing twice is harmless.
func (r *Rooms) remove(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.dropLocked(c)
}

func (r *Rooms) dropLocked(c *Client) {
	room, ok := r.rooms[c.sessionID]
	if !ok || !room[c] {
		return
	}

	delete(room, c)
	close(c.send)

	if len(room) == 0 {
		delete(r.rooms, c.sessionID)
	}
}

func (r *Rooms) Publish(sessionID string, msg any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for c := range r.rooms[sessionID] {
		select {
		case c.send <- msg:
		default:
			log.Warn().
				Str("session", sessionID).
				Str("client", c.id.String()).
				Msg("dropping slow client")
			r.dropLocked(c)
			_ = c.conn.Close()
		}
	}
}

// reply sends msg to one client only.
func (r *Rooms) reply(c *Client, msg any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.rooms[c.sessionID][c] {
		return
	}

	select {
	case c.send <- msg:
	default:
		r.dropLocked(c)
		_ = c.conn.Close()
	}
}

// closeRoom disconnects every client of a session, used when it is reaped.
func (r *Rooms) closeRoom(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for c := range r.rooms[sessionID] {
		r.dropLocked(c)
		_ = c.conn.Close()
	}
}

func (r *Rooms) setPlayer(c *Client, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c.player = name
}

// hasPlayer reports whether any socket of the session is joined as name.
func (r *Rooms) hasPlayer(sessionID, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for c := range r.rooms[sessionID] {
		if c.player == name {
			return true
		}
	}

	return false
}

func (r *Rooms) count(sessionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.rooms[sessionID])
}
