// Package session runs one round set against a remote player. A single
// goroutine owns every engine, both players and the coordinator; the
// transport, the clock and the front end only talk to it over channels.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/colorbets/internal/betting"
	"github.com/lox/colorbets/internal/config"
	"github.com/lox/colorbets/internal/peer"
	"github.com/lox/colorbets/internal/protocol"
	"github.com/lox/colorbets/internal/randutil"
	"github.com/lox/colorbets/internal/round"
	"github.com/lox/colorbets/internal/roundid"
)

var (
	ErrNoTransport    = errors.New("session: no transport attached")
	ErrPeerLeft       = errors.New("session: the other player left")
	ErrConfigMismatch = errors.New("session: players disagree on configuration")
	ErrRoleConflict   = errors.New("session: exactly one player must host")
	ErrHandshake      = errors.New("session: handshake failed")
	ErrClosed         = errors.New("session: not running")
)

const (
	commandBufferSize = 64
	leavePause        = 500 * time.Millisecond
)

// Options configure a session.
type Options struct {
	Config    *config.Config
	Transport peer.Transport
	// Authority is set on the hosting player, who draws outcomes and names
	// the round set.
	Authority bool
	Name      string
	Clock     quartz.Clock
	// Display optionally receives coordinator output as it happens.
	Display round.Display
	Logger  *log.Logger
}

// Snapshot is an immutable view of the session for front ends.
type Snapshot struct {
	round.Snapshot
	RoundSetID string
	RemoteName string
	Message    round.Notice
	Hint       string
	Leaving    bool
}

type command func(s *Session)

// Session drives a round set.
type Session struct {
	cfg       *config.Config
	transport peer.Transport
	authority bool
	name      string
	clock     quartz.Clock
	logger    *log.Logger

	display    *display
	coord      *round.Coordinator
	roundSetID string
	remoteName string

	commands  chan command
	snapshots chan Snapshot
	latest    atomic.Pointer[Snapshot]
	done      chan struct{}
	started   atomic.Bool

	leaving   bool
	leaveLeft time.Duration
	peerLeft  bool
}

// New validates opts and creates a session. Nothing happens until Run.
func New(opts Options) (*Session, error) {
	if opts.Transport == nil {
		return nil, ErrNoTransport
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	clock := opts.Clock
	if clock == nil {
		clock = quartz.NewReal()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	name := opts.Name
	if name == "" {
		name = "guest"
		if opts.Authority {
			name = "host"
		}
	}

	return &Session{
		cfg:       cfg,
		transport: opts.Transport,
		authority: opts.Authority,
		name:      name,
		clock:     clock,
		logger:    logger.WithPrefix("session").With("player", name),
		display:   &display{next: opts.Display},
		commands:  make(chan command, commandBufferSize),
		snapshots: make(chan Snapshot, 1),
		done:      make(chan struct{}),
	}, nil
}

// Snapshots delivers the latest state after every change. Slow readers
// only see the most recent snapshot.
func (s *Session) Snapshots() <-chan Snapshot { return s.snapshots }

// Snapshot returns the most recently published state.
func (s *Session) Snapshot() Snapshot {
	if snap := s.latest.Load(); snap != nil {
		return *snap
	}
	return Snapshot{}
}

// Done is closed when Run returns.
func (s *Session) Done() <-chan struct{} { return s.done }

// SelectChips moves chips from the local bank into the bet pool.
func (s *Session) SelectChips(chips []int) error {
	return s.submit(func(s *Session) { s.coord.Local().Select(chips) })
}

// ReturnChips moves chips from the bet pool back to the bank.
func (s *Session) ReturnChips(chips []int) error {
	return s.submit(func(s *Session) { s.coord.Local().Return(chips) })
}

// PickColor sets the local prediction.
func (s *Session) PickColor(color betting.Color) error {
	return s.submit(func(s *Session) { s.coord.Local().PickColor(color) })
}

// Ready tries to finalize the local bet.
func (s *Session) Ready() error {
	return s.submit(func(s *Session) { s.coord.Local().TrySetReady() })
}

// Leave tells the other player we are leaving and ends the session after a
// short pause.
func (s *Session) Leave() error {
	return s.submit(func(s *Session) { s.beginLeave() })
}

func (s *Session) submit(cmd command) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	select {
	case s.commands <- cmd:
		return nil
	case <-s.done:
		return ErrClosed
	}
}

// Run performs the handshake and plays until a player leaves, the link
// drops or ctx is cancelled. A local Leave returns nil.
func (s *Session) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("session: already running")
	}
	defer close(s.done)
	defer func() { _ = s.transport.Close() }()

	if err := s.handshake(ctx); err != nil {
		s.logger.Error("Handshake failed", "error", err)
		return err
	}
	if err := s.setup(); err != nil {
		return err
	}
	s.publish()

	s.logger.Info("Round set started", "id", s.roundSetID, "opponent", s.remoteName,
		"authority", s.authority, "config", s.cfg.String())
	return s.loop(ctx)
}

func (s *Session) handshake(ctx context.Context) error {
	if s.authority {
		s.roundSetID = roundid.NewGenerator(s.clock, nil).Next()
	}

	hello, err := protocol.Hello(protocol.HelloData{
		Name:        s.name,
		RoundSetID:  s.roundSetID,
		Version:     protocol.Version,
		Fingerprint: s.cfg.Fingerprint(),
		Authority:   s.authority,
	})
	if err != nil {
		return err
	}
	if err := s.transport.Send(hello); err != nil {
		return fmt.Errorf("%w: %w", ErrHandshake, err)
	}

	var msg *protocol.Message
	select {
	case msg = <-s.transport.Inbound():
	case <-s.transport.Done():
		select {
		case msg = <-s.transport.Inbound():
		default:
			return fmt.Errorf("%w: link closed before hello", ErrHandshake)
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	if msg.Type != protocol.TypeHello {
		return fmt.Errorf("%w: expected hello, got %s", ErrHandshake, msg.Type)
	}
	payload, err := msg.Payload()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	remote := payload.(*protocol.HelloData)

	switch {
	case remote.Version != protocol.Version:
		return fmt.Errorf("%w: protocol version %d, want %d", ErrConfigMismatch, remote.Version, protocol.Version)
	case remote.Fingerprint != s.cfg.Fingerprint():
		return fmt.Errorf("%w: fingerprint %s, want %s", ErrConfigMismatch, remote.Fingerprint, s.cfg.Fingerprint())
	case remote.Authority == s.authority:
		return ErrRoleConflict
	}

	s.remoteName = remote.Name
	if !s.authority {
		if err := roundid.Validate(remote.RoundSetID); err != nil {
			return fmt.Errorf("%w: %w", ErrHandshake, err)
		}
		s.roundSetID = remote.RoundSetID
	}
	s.logger = s.logger.With("roundSet", s.roundSetID)
	return nil
}

func (s *Session) setup() error {
	var seed *int64
	if s.cfg.Seed != 0 {
		seed = &s.cfg.Seed
	}
	rng, usedSeed := randutil.NewFromOptional(seed)
	if s.authority {
		s.logger.Debug("Outcome source seeded", "seed", usedSeed)
	}

	local := betting.NewPlayer(s.name, s.cfg.ChipsConfig(), s.cfg.Settings(), s.logger)
	remote := betting.NewPlayer(s.remoteName, s.cfg.ChipsConfig(), s.cfg.Settings(), s.logger)

	coord, err := round.NewCoordinator(s.cfg.RoundConfig(s.authority), local, remote,
		remotePeer{transport: s.transport}, s.display, rng, s.logger)
	if err != nil {
		return err
	}
	s.coord = coord
	return nil
}

func (s *Session) loop(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.cfg.TickInterval(), "session", "tick")
	defer ticker.Stop()
	defer s.publish()
	last := s.clock.Now()

	for {
		select {
		case <-ctx.Done():
			s.coord.Leave()
			return ctx.Err()

		case <-ticker.C:
			now := s.clock.Now()
			dt := now.Sub(last)
			last = now
			if done, err := s.tick(dt); done {
				return err
			}

		case msg := <-s.transport.Inbound():
			if err := s.dispatch(msg); err != nil {
				return err
			}

		case cmd := <-s.commands:
			cmd(s)

		case <-s.transport.Done():
			return s.linkLost()
		}
		s.publish()
	}
}

// tick advances the round by dt. It reports whether the session is over.
func (s *Session) tick(dt time.Duration) (bool, error) {
	err := s.coord.Tick(dt)

	if s.leaving {
		s.leaveLeft -= dt
		if s.leaveLeft <= 0 {
			s.logger.Info("Left the round set")
			return true, nil
		}
		return false, nil
	}

	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, round.ErrAborted) && s.peerLeft:
		return true, ErrPeerLeft
	default:
		s.logger.Error("Round set failed", "error", err)
		s.coord.Leave()
		return true, err
	}
}

func (s *Session) dispatch(msg *protocol.Message) error {
	payload, err := msg.Payload()
	if err != nil {
		s.logger.Warn("Dropping message", "type", msg.Type, "error", err)
		return nil
	}

	switch msg.Type {
	case protocol.TypeSelectChips:
		s.coord.HandleSelectChips(payload.(*protocol.ChipsData).Chips)
	case protocol.TypeReturnChips:
		s.coord.HandleReturnChips(payload.(*protocol.ChipsData).Chips)
	case protocol.TypePickedColor:
		s.coord.HandlePickedColor(payload.(*protocol.ColorData).Color)
	case protocol.TypePlacedBet:
		s.coord.HandlePlacedBet(payload.(*protocol.BetData).Bet)
	case protocol.TypeRoundReset:
		s.coord.HandleRoundReset()
	case protocol.TypeOutcomeAnnounced:
		s.coord.HandleOutcome(payload.(*protocol.ColorData).Color)
	case protocol.TypePlayerLeft:
		s.logger.Info("Opponent left", "opponent", s.remoteName)
		s.peerLeft = true
		s.coord.HandlePlayerLeft()
		if !s.leaving {
			return ErrPeerLeft
		}
	case protocol.TypeHello:
		s.logger.Warn("Ignoring repeated hello")
	}
	return nil
}

// linkLost handles a dropped transport. Messages that arrived before the
// drop are still applied so a farewell is not mistaken for a crash.
func (s *Session) linkLost() error {
	for {
		select {
		case msg := <-s.transport.Inbound():
			if err := s.dispatch(msg); err != nil {
				return err
			}
			continue
		default:
		}
		break
	}

	if s.leaving {
		return nil
	}
	s.logger.Warn("Connection to opponent lost")
	s.peerLeft = true
	s.coord.HandlePlayerLeft()
	return ErrPeerLeft
}

func (s *Session) beginLeave() {
	if s.leaving {
		return
	}
	s.leaving = true
	s.leaveLeft = leavePause
	s.coord.Leave()
}

func (s *Session) publish() {
	snap := Snapshot{
		Snapshot:   s.coord.Snapshot(),
		RoundSetID: s.roundSetID,
		RemoteName: s.remoteName,
		Message:    s.display.message,
		Hint:       s.display.hint,
		Leaving:    s.leaving,
	}
	s.latest.Store(&snap)

	select {
	case <-s.snapshots:
	default:
	}
	select {
	case s.snapshots <- snap:
	default:
	}
}
