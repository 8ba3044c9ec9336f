package main

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// natsBroadcaster mirrors session notifications onto NATS subjects of the
// form <prefix>.<session id>, for consumers outside this process.
type natsBroadcaster struct {
	nc     *nats.Conn
	prefix string
}

func newNATSBroadcaster(url, prefix string) (*natsBroadcaster, error) {
	opts := []nats.Option{
		nats.Name("fishbowl"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}

	log.Info().Str("url", nc.ConnectedUrl()).Str("subject", prefix+".>").Msg("publishing events to NATS")

	return &natsBroadcaster{nc: nc, prefix: prefix}, nil
}

// Publish never blocks on the network: nats.Conn buffers outgoing messages
// and flushes them from its own goroutine.
func (b *natsBroadcaster) Publish(sessionID string, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("session", sessionID).Msg("encoding event for NATS")
		return
	}

	if err := b.nc.Publish(subjectFor(b.prefix, sessionID), data); err != nil {
		log.Warn().Err(err).Str("session", sessionID).Msg("publishing event to NATS")
	}
}

func (b *natsBroadcaster) Close() error {
	return b.nc.Drain()
}

// subjectFor maps a session id onto a single NATS subject token.
func subjectFor(prefix, sessionID string) string {
	token := strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, sessionID)

	if token == "" {
		token = "_"
	}

	return prefix + "." + token
}
