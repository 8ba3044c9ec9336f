// Fishbowl transport
//
// Routes, relative to --prefix:
//   /party                → redirects to a new random session (8-char id)
//   /party/:gameid        → session landing page
//   /party/:gameid/ws     → WebSocket carrying commands and notifications
//   /party/:gameid/state  → JSON snapshot of the session
//   /party/:gameid/qr     → PNG QR code of the session URL
//
// Every socket belongs to exactly one session. A player whose last socket
// closes keeps their seat for --player-timeout, and joining again under the
// same name within that window reclaims it. Commands are JSON objects
// with a "type" field; session-wide notifications are delivered to all of a
// session's sockets, while replies (joined, hand, error, redirect) go only to
// the socket that sent the command.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"
)

const (
	maxMessageSize = 64 << 10
	writeWait      = 10 * time.Second
)

type party struct {
	cfg      *Config
	path     string
	store    *Store
	rooms    *Rooms
	upgrader websocket.Upgrader
}

func newParty(cfg *Config, path string, store *Store, rooms *Rooms) *party {
	return &party{
		cfg:   cfg,
		path:  path,
		store: store,
		rooms: rooms,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || cfg.originAllowed(origin)
			},
		},
	}
}

func (p *party) lobbyURL() string {
	return p.cfg.prefix + p.path
}

func (p *party) serveWS() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")
		if gameID == "" {
			http.Error(w, "missing game id", http.StatusBadRequest)
			return
		}

		conn, err := p.upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Str("remote", realIP(r)).Msg("websocket upgrade failed")
			return
		}

		c := newClient(conn, gameID)
		p.rooms.add(c)

		logf(p.cfg, "SOCKET: %s connected to %s as %s", realIP(r), gameID, c.id)

		go c.writePump()
		p.readPump(c)

		logf(p.cfg, "SOCKET: %s disconnected from %s", c.id, gameID)
	}
}

func (p *party) readPump(c *Client) {
	defer func() {
		p.rooms.remove(c)
		_ = c.conn.Close()

		if c.player != "" && !p.rooms.hasPlayer(c.sessionID, c.player) {
			p.store.Disconnected(c.sessionID, c.player)
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				p.rooms.reply(c, errorReply(fmt.Errorf("%w: malformed message", ErrInvalidCommand)))
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("client", c.id.String()).Msg("socket read failed")
			}
			return
		}

		if err := p.dispatch(c, msg); err != nil {
			log.Debug().
				Err(err).
				Str("session", c.sessionID).
				Str("client", c.id.String()).
				Str("type", msg.Type).
				Msg("command rejected")
			p.rooms.reply(c, errorReply(err))
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}

	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

func errorReply(err error) ErrorMessage {
	return ErrorMessage{Type: "error", Code: errorCode(err), Message: err.Error()}
}

// dispatch runs one client command. Returned errors are reported to the
// sending client only.
func (p *party) dispatch(c *Client, msg ClientMessage) error {
	name := msg.PlayerName
	if name == "" {
		name = c.player
	}

	switch msg.Type {
	case "join":
		sess, final, err := p.store.Join(c.sessionID, msg.PlayerName, msg.TeamName)
		if err != nil {
			return err
		}
		p.rooms.setPlayer(c, final)

		p.rooms.reply(c, JoinedMessage{
			Type:       "joined",
			SessionID:  sess.ID(),
			PlayerName: final,
			TeamName:   sess.TeamOf(final),
		})

		return nil

	case "lobby_return":
		removed, err := p.store.Leave(c.sessionID, name)
		if err != nil {
			return err
		}
		if removed == c.player {
			p.rooms.setPlayer(c, "")
		}

		p.rooms.reply(c, RedirectMessage{Type: "redirect_to_lobby", URL: p.lobbyURL()})

		return nil
	}

	sess, err := p.store.Get(c.sessionID)
	if err != nil {
		return err
	}

	switch msg.Type {
	case "draw_cards":
		return p.replyHand(c)(sess.DrawCards(name))

	case "refresh_hand":
		return p.replyHand(c)(sess.RefreshHand(name))

	case "submit_selection":
		return p.replyHand(c)(sess.SubmitSelection(name, msg.SelectedTerms))

	case "submit_custom_card":
		card := Card{Term: msg.Term, Definition: msg.Definition, Points: msg.Points}
		return p.replyHand(c)(sess.SubmitCustomCard(name, card))

	case "check_submissions":
		st := sess.Snapshot()
		p.rooms.reply(c, SubmissionStatusMessage{
			Type:         "submission_status",
			AllSubmitted: st.AllSubmitted,
			Players:      st.Players,
		})
		return nil

	case "start_round":
		return sess.StartRound(name)

	case "get_card":
		actor := msg.ActorName
		if actor == "" {
			actor = c.player
		}
		return sess.GetCard(actor, msg.CardTerm)

	case "skip_card":
		sess.SkipCard(msg.CardTerm)
		return nil

	case "start_next_turn":
		return sess.StartNextTurn()

	case "pause_round":
		return sess.Pause()

	case "resume_round":
		return sess.Resume()

	default:
		return fmt.Errorf("%w: unknown message type %q", ErrInvalidCommand, msg.Type)
	}
}

func (p *party) replyHand(c *Client) func(HandMessage, error) error {
	return func(hand HandMessage, err error) error {
		if err != nil {
			return err
		}
		p.rooms.reply(c, hand)
		return nil
	}
}

func (p *party) serveState() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(p.cfg, w)

		sess, err := p.store.Get(ps.ByName("gameid"))
		if err != nil {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(errorReply(err))
			return
		}

		_ = json.NewEncoder(w).Encode(sess.Snapshot())
	}
}

func (p *party) serveSessionPage() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(p.cfg, w)

		base := p.lobbyURL() + "/" + gameID
		body := fmt.Sprintf("Session %s: connect to %s/ws to play.", html.EscapeString(gameID), html.EscapeString(base))

		_, _ = io.WriteString(w, newPage("Fishbowl "+html.EscapeString(gameID), body))
	}
}

// qrHandler renders the session's own URL as a PNG QR code.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	gameID := ps.ByName("gameid")
	if gameID == "" {
		http.Error(w, "missing game id", http.StatusBadRequest)
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	path := strings.TrimSuffix(r.URL.Path, "/qr")
	url := scheme + "://" + r.Host + path

	const qrSize = 320
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func (p *party) redirectNewGame() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		gameID := p.store.NewID()
		logf(p.cfg, "GAMES: Created game %s/%s", p.lobbyURL(), gameID)
		http.Redirect(w, r, p.lobbyURL()+"/"+gameID, http.StatusTemporaryRedirect)
	}
}

func registerPartyGame(cfg *Config, path string, mux *httprouter.Router, store *Store, rooms *Rooms) {
	p := newParty(cfg, path, store, rooms)

	mux.GET(cfg.prefix+path, p.redirectNewGame())
	mux.GET(cfg.prefix+path+"/:gameid", p.serveSessionPage())
	mux.GET(cfg.prefix+path+"/:gameid/ws", p.serveWS())
	mux.GET(cfg.prefix+path+"/:gameid/state", p.serveState())
	mux.GET(cfg.prefix+path+"/:gameid/qr", qrHandler)
}
