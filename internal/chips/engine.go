package chips

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lox/colorbets/internal/intvec"
)

var (
	ErrInvalidDestination = errors.New("invalid transfer destination")
	ErrLengthMismatch     = errors.New("per-stack counts do not match number of stacks")
	ErrNegativeCount      = errors.New("negative chip count")
	ErrInsufficientChips  = errors.New("not enough chips in stack")
	ErrCapacityExceeded   = errors.New("stack capacity exceeded")
)

// Config describes the shape of a stack group.
type Config struct {
	Colors   []string // one per stack
	Initial  int      // chips per stack at construction
	Capacity int      // upper bound per stack
	Speed    float64  // unit animations completed per second
}

// UnitMove describes a single chip landing in its destination stack.
type UnitMove struct {
	Source   string
	Dest     string
	Stack    int
	FromSlot int
	ToSlot   int
}

// CompleteFunc receives the final source and destination counts of a batch.
type CompleteFunc func(src, dst []int)

// batch is a queued transfer between two stack groups.
type batch struct {
	counts     []int
	dest       *Engine
	onComplete CompleteFunc

	stack     int // stack currently being drained
	remaining int // units left in the current stack
}

// Engine owns one stack group and moves chips out of it one unit at a time.
// Batches are processed strictly FIFO, and an engine never has more than
// one batch in flight. It is not safe for concurrent use; the owner drives
// it from a single loop through Tick.
type Engine struct {
	name   string
	logger *log.Logger
	speed  float64

	stacks    []Stack
	projected []int
	mask      []int

	queue     []*batch
	active    *batch
	progress  float64
	sending   bool
	receiving bool

	onUnit func(UnitMove)
}

// NewEngine creates an engine whose stacks all start with cfg.Initial chips.
func NewEngine(name string, cfg Config, logger *log.Logger) *Engine {
	n := len(cfg.Colors)
	capacity := cfg.Capacity
	if capacity < cfg.Initial {
		capacity = cfg.Initial
	}

	stacks := make([]Stack, n)
	for i := range stacks {
		stacks[i] = Stack{
			Index:    i,
			Count:    cfg.Initial,
			Color:    cfg.Colors[i],
			Capacity: capacity,
		}
	}

	return &Engine{
		name:      name,
		logger:    logger.WithPrefix("engine").With("group", name),
		speed:     cfg.Speed,
		stacks:    stacks,
		projected: intvec.Fill(n, cfg.Initial),
		mask:      intvec.Zeros(n),
	}
}

// Name returns the stack group name.
func (e *Engine) Name() string { return e.name }

// Len returns the number of stacks.
func (e *Engine) Len() int { return len(e.stacks) }

// Stacks returns a copy of the stacks.
func (e *Engine) Stacks() []Stack {
	out := make([]Stack, len(e.stacks))
	copy(out, e.stacks)
	return out
}

// Counts returns the active chip count of every stack.
func (e *Engine) Counts() []int {
	out := make([]int, len(e.stacks))
	for i, s := range e.stacks {
		out[i] = s.Count
	}
	return out
}

// Projected returns the counts the stacks will hold once every queued
// transfer into or out of this group has landed.
func (e *Engine) Projected() []int { return intvec.Copy(e.projected) }

// Sum returns the total number of active chips.
func (e *Engine) Sum() int { return intvec.Sum(e.Counts()) }

// Sending reports whether a batch from this engine is in flight.
func (e *Engine) Sending() bool { return e.sending }

// Receiving reports whether another engine is currently sending into this group.
func (e *Engine) Receiving() bool { return e.receiving }

// Idle reports whether the engine has nothing queued or in flight.
func (e *Engine) Idle() bool { return e.active == nil && len(e.queue) == 0 }

// Pending returns the number of queued batches, including the active one.
func (e *Engine) Pending() int {
	n := len(e.queue)
	if e.active != nil {
		n++
	}
	return n
}

// Progress returns the animation progress of the unit in flight, in [0,1).
func (e *Engine) Progress() float64 { return e.progress }

// OnUnit registers an observer that is told about every chip that lands.
func (e *Engine) OnUnit(fn func(UnitMove)) { e.onUnit = fn }

// SetSelectionMask sets a per-stack floor below which chips are not
// eligible for selection. It is a metadata update, not a transfer.
func (e *Engine) SetSelectionMask(mask []int) error {
	if len(mask) != len(e.stacks) {
		return fmt.Errorf("%s selection mask: %w", e.name, ErrLengthMismatch)
	}
	copy(e.mask, mask)
	return nil
}

// SelectionMask returns a copy of the current selection mask.
func (e *Engine) SelectionMask() []int { return intvec.Copy(e.mask) }

// Selectable returns how many chips of stack i will sit above the selection
// mask once queued transfers have landed.
func (e *Engine) Selectable(i int) int {
	if i < 0 || i >= len(e.stacks) {
		return 0
	}
	return max(0, e.projected[i]-e.mask[i])
}

// Reset clears per-round metadata. Counts and queued transfers are untouched.
func (e *Engine) Reset() {
	e.mask = intvec.Zeros(len(e.stacks))
}

// Enqueue appends a transfer of counts[i] chips from every stack i of this
// group to the same stack of dest. It returns immediately. A request whose
// counts sum to zero is a no-op and its callback never fires.
//
// Requests are validated against projected counts. Over-drawing a stack or
// overfilling a destination stack is a caller error and is reported, never
// clamped.
func (e *Engine) Enqueue(counts []int, dest *Engine, onComplete CompleteFunc) error {
	if dest == nil || dest == e {
		return fmt.Errorf("%s: %w", e.name, ErrInvalidDestination)
	}
	if len(counts) != len(e.stacks) || len(dest.stacks) != len(e.stacks) {
		return fmt.Errorf("%s -> %s: %w", e.name, dest.name, ErrLengthMismatch)
	}
	for i, n := range counts {
		if n < 0 {
			return fmt.Errorf("%s -> %s stack %d: %w", e.name, dest.name, i, ErrNegativeCount)
		}
		if n > e.projected[i] {
			return fmt.Errorf("%s -> %s stack %d (want %d, have %d): %w",
				e.name, dest.name, i, n, e.projected[i], ErrInsufficientChips)
		}
		if dest.projected[i]+n > dest.stacks[i].Capacity {
			return fmt.Errorf("%s -> %s stack %d: %w", e.name, dest.name, i, ErrCapacityExceeded)
		}
	}
	if intvec.Sum(counts) == 0 {
		return nil
	}

	for i, n := range counts {
		e.projected[i] -= n
		dest.projected[i] += n
	}
	e.queue = append(e.queue, &batch{
		counts:     intvec.Copy(counts),
		dest:       dest,
		onComplete: onComplete,
		stack:      -1,
	})

	e.logger.Debug("Queued transfer", "dest", dest.name, "chips", intvec.String(counts), "queued", len(e.queue))
	return nil
}

// EnqueueAll transfers the full projected content of this group to dest and
// returns the counts that were queued.
func (e *Engine) EnqueueAll(dest *Engine, onComplete CompleteFunc) ([]int, error) {
	counts := e.Projected()
	if err := e.Enqueue(counts, dest, onComplete); err != nil {
		return nil, err
	}
	return counts, nil
}

// Tick advances the engine by dt. It starts the next queued batch when the
// engine is free, then advances the unit in flight.
func (e *Engine) Tick(dt time.Duration) error {
	if e.active == nil && !e.startNext() {
		return nil
	}

	b := e.active
	if !b.nextUnit() {
		e.finish()
		return nil
	}

	e.progress += e.speed * dt.Seconds()
	if e.progress < 1 {
		return nil
	}
	e.progress = 0

	if err := e.land(b); err != nil {
		return err
	}
	if !b.nextUnit() {
		e.finish()
	}
	return nil
}

// Abort discards queued and in-flight batches without rolling back units
// that already landed. Callbacks of discarded batches never fire.
func (e *Engine) Abort() {
	if e.active != nil {
		e.active.dest.receiving = false
	}
	dropped := e.Pending()
	e.queue = nil
	e.active = nil
	e.progress = 0
	e.sending = false
	e.receiving = false
	e.projected = e.Counts()
	if dropped > 0 {
		e.logger.Warn("Aborted transfers", "dropped", dropped)
	}
}

// startNext dequeues the head batch if it may start now. A busy engine, a
// destination already receiving, or source stacks still waiting on inbound
// chips are transient conditions re-checked on the next tick.
func (e *Engine) startNext() bool {
	if len(e.queue) == 0 || e.sending {
		return false
	}
	next := e.queue[0]
	if next.dest.receiving {
		return false
	}
	for i, n := range next.counts {
		if e.stacks[i].Count < n {
			return false
		}
	}

	e.queue = e.queue[1:]
	e.active = next
	e.sending = true
	next.dest.receiving = true
	e.progress = 0

	e.logger.Debug("Starting transfer", "dest", next.dest.name, "chips", intvec.String(next.counts))
	return true
}

// nextUnit positions the batch on the next stack with units left.
func (b *batch) nextUnit() bool {
	for b.remaining == 0 {
		b.stack++
		if b.stack >= len(b.counts) {
			return false
		}
		b.remaining = b.counts[b.stack]
	}
	return true
}

// land moves the top chip of the current stack into the destination.
func (e *Engine) land(b *batch) error {
	i := b.stack
	src := &e.stacks[i]
	dst := &b.dest.stacks[i]

	if src.Count == 0 {
		return fmt.Errorf("%s -> %s stack %d: %w", e.name, b.dest.name, i, ErrInsufficientChips)
	}
	if dst.Count >= dst.Capacity {
		return fmt.Errorf("%s -> %s stack %d: %w", e.name, b.dest.name, i, ErrCapacityExceeded)
	}

	move := UnitMove{
		Source:   e.name,
		Dest:     b.dest.name,
		Stack:    i,
		FromSlot: src.Count - 1,
		ToSlot:   dst.Count,
	}
	src.Count--
	dst.Count++
	b.remaining--

	if e.onUnit != nil {
		e.onUnit(move)
	}
	return nil
}

func (e *Engine) finish() {
	b := e.active
	e.active = nil
	e.sending = false
	e.progress = 0
	b.dest.receiving = false

	e.logger.Debug("Transfer complete", "dest", b.dest.name, "chips", intvec.String(b.counts))
	if b.onComplete != nil {
		b.onComplete(e.Counts(), b.dest.Counts())
	}
}
