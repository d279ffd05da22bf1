// Package server fans chat and system messages out to every registered client.
package server

import (
	"time"

	"github.com/rs/zerolog"
)

// Broadcaster writes messages to every client in a Registry, the sender
// included. Recipients are written one after another from a snapshot, so a
// slow reader delays the rest of that broadcast. A failed write is recorded
// on the recipient and never removes it from the registry here.
type Broadcaster struct {
	registry     *Registry
	writeTimeout time.Duration
	logger       zerolog.Logger
}

// NewBroadcaster creates a Broadcaster over registry. A zero writeTimeout
// lets each write block until the transport gives up.
func NewBroadcaster(registry *Registry, writeTimeout time.Duration, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		registry:     registry,
		writeTimeout: writeTimeout,
		logger:       logger,
	}
}

// BroadcastChat sends {"nick":nick,"msg":text} to every registered client and
// returns how many writes succeeded.
func (b *Broadcaster) BroadcastChat(nick, text string) int {
	payload, err := encodeChat(nick, text)
	if err != nil {
		b.logger.Error().Err(err).Str("nick", nick).Msg("Error encoding chat message")
		return 0
	}
	return b.send(payload)
}

// BroadcastSystem sends text verbatim to every registered client and returns
// how many writes succeeded.
func (b *Broadcaster) BroadcastSystem(text string) int {
	return b.send([]byte(text))
}

func (b *Broadcaster) send(payload []byte) int {
	entries := b.registry.Snapshot()
	delivered := 0

	for _, entry := range entries {
		if err := entry.Client.deliver(payload, b.writeTimeout); err != nil {
			b.logger.Debug().
				Err(err).
				Str("session", entry.Client.id.String()).
				Str("nick", entry.Nick).
				Msg("Broadcast write failed")
			continue
		}
		delivered++
	}

	b.logger.Debug().
		Int("recipients", len(entries)).
		Int("delivered", delivered).
		Msg("Broadcast complete")
	return delivered
}
