package shipper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/tempslope/tempslope/agent/internal/compute"
	"github.com/tempslope/tempslope/agent/internal/config"
	"github.com/tempslope/tempslope/pkg/types"
)

const (
	backoffInitial    = 1 * time.Second
	backoffMax        = 60 * time.Second
	backoffMultiplier = 2.0
	sendTimeout       = 10 * time.Second
)

// errPermanent marks a send failure caused by the snapshot or the agent's
// credentials. Retrying the same snapshot cannot succeed.
var errPermanent = errors.New("permanent")

// transport delivers one snapshot to its destination.
type transport interface {
	Send(ctx context.Context, snap *types.Snapshot) error
	Close() error
}

// dialFunc opens a transport for the configured destinations.
// Abstracted so tests can inject an httptest server or a fake broker.
type dialFunc func(ctx context.Context, cfg config.AgentConfig) (transport, error)

// Shipper buffers compute.Results and ships them to tempslope-server over
// HTTP, to an MQTT broker, or both.
// Ship() is non-blocking; when the buffer is full the oldest snapshot is evicted.
// Run() must be called in a goroutine to drain the buffer and handle reconnection.
type Shipper struct {
	cfg    config.AgentConfig
	buf    chan *types.Snapshot
	dialFn dialFunc // injectable for tests
}

// New creates a Shipper using the given agent config.
func New(cfg config.AgentConfig) *Shipper {
	size := cfg.BufferSize
	if size <= 0 {
		size = config.DefaultBufferSize
	}
	return &Shipper{
		cfg:    cfg,
		buf:    make(chan *types.Snapshot, size),
		dialFn: defaultDial,
	}
}

// Ship converts a compute.Result to a wire snapshot and enqueues it.
// If the buffer is full the oldest entry is evicted to make room.
func (s *Shipper) Ship(res *compute.Result, certs ...*types.CertStatus) {
	s.enqueue(toSnapshot(res, certs))
}

func (s *Shipper) enqueue(snap *types.Snapshot) {
	select {
	case s.buf <- snap:
	default:
		select {
		case <-s.buf:
			slog.Warn("shipper: buffer full, evicted oldest snapshot",
				"sensor", snap.SensorID, "buffer_cap", cap(s.buf))
		default:
		}
		select {
		case s.buf <- snap:
		default:
		}
	}
}

// Pending returns the number of buffered snapshots.
func (s *Shipper) Pending() int { return len(s.buf) }

// Run drains the buffer, sending snapshots to the configured destinations.
// It reconnects with exponential backoff when the connection is lost.
// Run blocks until ctx is cancelled.
func (s *Shipper) Run(ctx context.Context) {
	bo := newBackoff()

	for {
		if ctx.Err() != nil {
			return
		}

		tr, err := s.dialFn(ctx, s.cfg)
		if err != nil {
			wait := bo.next()
			slog.Error("shipper: dial failed, will retry",
				"endpoint", s.destination(),
				"err", err,
				"retry_in", wait)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
				continue
			}
		}

		slog.Info("shipper: connected", "endpoint", s.destination())
		bo.reset()

		err = s.drain(ctx, tr)
		if cerr := tr.Close(); cerr != nil {
			slog.Debug("shipper: close transport", "err", cerr)
		}

		if ctx.Err() != nil {
			return
		}

		wait := bo.next()
		slog.Warn("shipper: connection lost, will reconnect",
			"endpoint", s.destination(),
			"err", err,
			"retry_in", wait)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// drain reads from the buffer and sends snapshots until a send fails
// transiently or ctx is cancelled.
func (s *Shipper) drain(ctx context.Context, tr transport) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case snap := <-s.buf:
			sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
			err := tr.Send(sendCtx, snap)
			cancel()

			if err == nil {
				slog.Debug("shipper: snapshot delivered", "sensor", snap.SensorID)
				continue
			}
			if errors.Is(err, errPermanent) {
				slog.Error("shipper: permanent send error, discarding snapshot",
					"sensor", snap.SensorID, "err", err)
				continue
			}

			// Put the snapshot back if there's room; otherwise the next
			// cycle's data supersedes it.
			select {
			case s.buf <- snap:
			default:
			}
			return fmt.Errorf("send: %w", err)
		}
	}
}

func (s *Shipper) destination() string {
	switch {
	case s.cfg.ServerEndpoint != "" && s.cfg.MQTT.Enabled():
		return s.cfg.ServerEndpoint + " + mqtt://" + s.cfg.MQTT.Broker
	case s.cfg.MQTT.Enabled():
		return "mqtt://" + s.cfg.MQTT.Broker
	default:
		return s.cfg.ServerEndpoint
	}
}

// backoff implements truncated exponential backoff with jitter.
type backoff struct {
	current time.Duration
}

func newBackoff() *backoff {
	return &backoff{current: backoffInitial}
}

// next returns the current backoff duration and advances the internal state.
func (b *backoff) next() time.Duration {
	d := b.current
	// ±25 % jitter.
	jitter := time.Duration(float64(b.current) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	d += jitter
	if d < 0 {
		d = 0
	}

	b.current = time.Duration(float64(b.current) * backoffMultiplier)
	if b.current > backoffMax {
		b.current = backoffMax
	}
	return d
}

func (b *backoff) reset() {
	b.current = backoffInitial
}
