// Package coalesce implements the bounded, backpressure-aware producer
// channel and coalescing receiver that sit in front of a block.Stream: the
// segmenter itself only ever sees one coalesced chunk at a time, never the
// raw flood of small deltas a streaming LLM response or socket read
// produces.
package coalesce

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sourcegraph/conc"
)

// BackpressurePolicy decides what Producer.Send does when the bounded
// channel is full.
type BackpressurePolicy int

const (
	// Block waits for channel capacity, applying backpressure to the sender.
	Block BackpressurePolicy = iota
	// DropNew discards the new chunk outright when the channel is full.
	DropNew
	// CoalesceLocal appends the new chunk to a local buffer (capped at
	// MaxLocalCoalesceBytes) and flushes it as one send on a later Send (or
	// Close) that finds capacity; later chunks queue behind the buffered data.
	CoalesceLocal
)

// ErrDropped is returned by Send when DropNew discarded a chunk.
var ErrDropped = errors.New("coalesce: chunk dropped under backpressure")

// ProducerOptions configures a Producer.
type ProducerOptions struct {
	Policy                BackpressurePolicy
	MaxLocalCoalesceBytes int // only meaningful for CoalesceLocal
}

// Producer is a bounded channel of raw text deltas with a configurable
// backpressure policy.
type Producer struct {
	ch     chan string
	opts   ProducerOptions
	local  strings.Builder
	logger *log.Logger
}

// NewProducer builds a Producer with the given channel capacity and policy.
func NewProducer(capacity int, opts ProducerOptions) *Producer {
	return &Producer{
		ch:     make(chan string, capacity),
		opts:   opts,
		logger: log.New(io.Discard),
	}
}

// SetLogger replaces the producer's diagnostic logger.
func (p *Producer) SetLogger(logger *log.Logger) { p.logger = logger }

// Chan exposes the underlying channel for a Coalescer to consume.
func (p *Producer) Chan() <-chan string { return p.ch }

// Close closes the underlying channel, signaling no more chunks will arrive.
// Flushes any CoalesceLocal-buffered remainder first.
func (p *Producer) Close() {
	if p.local.Len() > 0 {
		p.ch <- p.local.String()
		p.local.Reset()
	}
	close(p.ch)
}

// Send delivers chunk according to the configured backpressure policy.
// Returns ErrDropped only under the DropNew policy when the channel was full.
// If ctx is canceled or its deadline expires while Send is blocked waiting
// for channel capacity, Send returns ctx.Err() instead.
func (p *Producer) Send(ctx context.Context, chunk string) error {
	switch p.opts.Policy {
	case Block:
		select {
		case p.ch <- chunk:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}

	case DropNew:
		select {
		case p.ch <- chunk:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
			p.logger.Warn("dropped chunk under backpressure", "bytes", len(chunk))
			return ErrDropped
		}

	case CoalesceLocal:
		if p.local.Len() == 0 {
			select {
			case p.ch <- chunk:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		p.local.WriteString(chunk)
		if max := p.opts.MaxLocalCoalesceBytes; max > 0 && p.local.Len() > max {
			overflow := p.local.String()
			p.local.Reset()
			select {
			case p.ch <- overflow:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		select {
		case p.ch <- p.local.String():
			p.local.Reset()
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		return nil

	default:
		select {
		case p.ch <- chunk:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// FlushReason says why a Coalescer emitted a chunk.
type FlushReason int

const (
	FlushNewline FlushReason = iota
	FlushMaxBytes
	FlushMaxDelay
	FlushClosed
)

func (r FlushReason) String() string {
	switch r {
	case FlushNewline:
		return "newline"
	case FlushMaxBytes:
		return "max_bytes"
	case FlushMaxDelay:
		return "max_delay"
	case FlushClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Chunk is one coalesced unit handed to the segmenter.
type Chunk struct {
	Data        string
	Reason      FlushReason
	MergedCount int
}

// CoalesceOptions configures a Coalescer's flush triggers.
type CoalesceOptions struct {
	// FlushOnNewline flushes as soon as the buffered data contains '\n'.
	FlushOnNewline bool
	MaxBytes       int
	MaxDelay       time.Duration
}

// Coalescer merges a stream of small deltas from a Producer's channel into
// larger Chunks, flushing on whichever trigger fires first.
type Coalescer struct {
	in   <-chan string
	opts CoalesceOptions
}

// NewCoalescer builds a Coalescer reading from in.
func NewCoalescer(in <-chan string, opts CoalesceOptions) *Coalescer {
	return &Coalescer{in: in, opts: opts}
}

// Run drives the coalescing loop until in is closed and drained, or ctx is
// canceled, emitting Chunks to out. Run blocks the calling goroutine; callers
// typically invoke it via a conc.WaitGroup (see RunInPool) so a panic inside
// Run is re-raised on Wait. On
// cancellation, Run flushes whatever is buffered as a FlushClosed chunk
// before returning, matching the close path.
func (c *Coalescer) Run(ctx context.Context, out chan<- Chunk) {
	defer close(out)

	var buf strings.Builder
	merged := 0

	var timer *time.Timer
	var timerC <-chan time.Time
	resetTimer := func() {
		if c.opts.MaxDelay <= 0 {
			return
		}
		if timer == nil {
			timer = time.NewTimer(c.opts.MaxDelay)
		} else {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(c.opts.MaxDelay)
		}
		timerC = timer.C
	}

	flush := func(reason FlushReason) {
		if buf.Len() == 0 && merged == 0 {
			return
		}
		out <- Chunk{Data: buf.String(), Reason: reason, MergedCount: merged}
		buf.Reset()
		merged = 0
	}

	resetTimer()
	for {
		select {
		case <-ctx.Done():
			flush(FlushClosed)
			return

		case chunk, ok := <-c.in:
			if !ok {
				flush(FlushClosed)
				return
			}
			buf.WriteString(chunk)
			merged++

			if c.opts.FlushOnNewline && strings.Contains(chunk, "\n") {
				flush(FlushNewline)
				resetTimer()
				continue
			}
			if c.opts.MaxBytes > 0 && buf.Len() >= c.opts.MaxBytes {
				flush(FlushMaxBytes)
				resetTimer()
				continue
			}

		case <-timerC:
			flush(FlushMaxDelay)
			resetTimer()
		}
	}
}

// RunInPool starts Run on wg, so a panic inside the coalescing loop is caught
// and re-raised on wg.Wait rather than crashing the process silently. A send
// on out that blocks forever is not interrupted.
func RunInPool(ctx context.Context, wg *conc.WaitGroup, c *Coalescer, out chan<- Chunk) {
	wg.Go(func() { c.Run(ctx, out) })
}
