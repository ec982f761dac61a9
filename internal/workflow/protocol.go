package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Sequencer hands out the running protocol counter of a year. It must run
// inside the transaction that assigns the protocol.
type Sequencer interface {
	NextProtocolSequence(ctx context.Context, year int) (int64, error)
}

// ProtocolGenerator renders protocol numbers as PREFIX-<year>/<micro><seq>.
type ProtocolGenerator struct {
	prefix string
	now    func() time.Time
}

// NewProtocolGenerator builds a generator; an empty prefix defaults to GIPE.
func NewProtocolGenerator(prefix string, now func() time.Time) *ProtocolGenerator {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "GIPE"
	}
	if now == nil {
		now = time.Now
	}
	return &ProtocolGenerator{prefix: prefix, now: now}
}

// Generate reads and increments the counter and renders the number. A counter
// failure is returned as is so the caller aborts the stage exit.
func (g *ProtocolGenerator) Generate(ctx context.Context, seq Sequencer) (string, error) {
	now := g.now()
	n, err := seq.NextProtocolSequence(ctx, now.Year())
	if err != nil {
		return "", fmt.Errorf("protocol counter unavailable: %w", err)
	}
	micro := now.Nanosecond() / int(time.Microsecond)
	return fmt.Sprintf("%s-%d/%06d%d", g.prefix, now.Year(), micro, n), nil
}
