package observability

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/pulsar-beacon/beacon/internal/plan"
)

// MessageSink delivers SendMessage actions' output somewhere external
// (a log, a webhook, a pub/sub topic) without making the cycle loop
// wait on that delivery (spec §5: "Suspension points are confined to
// adapter read and write" — message delivery must never become a
// third one).
//
// Grounded on the teacher's AsyncEmitter (async_emitter.go):
// identical buffered-channel-plus-worker-goroutine shape, generalized
// from a fixed compliance-evidence-span payload to a pluggable
// deliver function, and from "OpenTelemetry is always the sink" to
// "the caller decides what counts as delivery."
type MessageSink struct {
	buffer  chan plan.Message
	deliver func(plan.Message)
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewMessageSink creates a sink with the given buffer size; deliver is
// called once per message on the sink's background goroutine.
func NewMessageSink(bufferSize int, deliver func(plan.Message)) *MessageSink {
	ctx, cancel := context.WithCancel(context.Background())
	return &MessageSink{
		buffer:  make(chan plan.Message, bufferSize),
		deliver: deliver,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins the background delivery worker.
func (s *MessageSink) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case msg := <-s.buffer:
				s.deliver(msg)
			case <-s.ctx.Done():
				s.drain()
				return
			}
		}
	}()
}

// Emit queues a message for delivery. Non-blocking: if the buffer is
// full the message is dropped and logged, never allowed to stall the
// cycle that produced it.
func (s *MessageSink) Emit(msg plan.Message) {
	select {
	case s.buffer <- msg:
	default:
		log.Printf("message sink buffer full, dropping message on channel %q", msg.Channel)
	}
}

// Stop cancels the worker and waits for it to drain, up to 5 seconds.
func (s *MessageSink) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *MessageSink) drain() {
	deadline := time.After(5 * time.Second)
	drained := 0
	for {
		select {
		case msg := <-s.buffer:
			s.deliver(msg)
			drained++
		case <-deadline:
			if remaining := len(s.buffer); remaining > 0 {
				log.Printf("message sink shutdown timed out, %d messages dropped", remaining)
			}
			return
		default:
			return
		}
	}
}

// BufferSize and BufferCapacity expose the channel's current and
// maximum depth, for tests and diagnostics.
func (s *MessageSink) BufferSize() int     { return len(s.buffer) }
func (s *MessageSink) BufferCapacity() int { return cap(s.buffer) }
