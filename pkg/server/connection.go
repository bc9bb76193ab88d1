package server

import (
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cuemby/docstore/pkg/log"
	"github.com/cuemby/docstore/pkg/metrics"
	"github.com/cuemby/docstore/pkg/protocol"
	"github.com/cuemby/docstore/pkg/wire"
)

// connState is a connection's position in the NEW→SETUP→READY→CLOSING→
// TERMINATED state machine (spec.md §4.2).
type connState int

const (
	stateNew connState = iota
	stateSetup
	stateReady
	stateClosing
	stateTerminated
)

func (s connState) String() string {
	switch s {
	case stateNew:
		return "new"
	case stateSetup:
		return "setup"
	case stateReady:
		return "ready"
	case stateClosing:
		return "closing"
	case stateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// outboundQueueDepth bounds the writer goroutine's backlog. A slow
// client applies backpressure to the reader via this channel filling
// up, rather than the server buffering unboundedly in memory.
const outboundQueueDepth = 256

// conn owns one client connection: a reader goroutine decoding frames, a
// writer goroutine draining an outbound queue, and the state machine
// both consult before acting (spec.md §4.2, §9 Open Question 4).
type conn struct {
	id     string
	raw    net.Conn
	reader *wire.Reader
	writer *wire.Writer
	logger zerolog.Logger

	disp *dispatcher

	mu    sync.Mutex
	state connState

	outbound chan wire.Frame
	done     chan struct{}
}

func newConn(id string, raw net.Conn, disp *dispatcher) *conn {
	return &conn{
		id:       id,
		raw:      raw,
		reader:   wire.NewReader(raw),
		writer:   wire.NewWriter(raw),
		logger:   log.WithConnID(id).With().Str("component", "server").Logger(),
		disp:     disp,
		state:    stateNew,
		outbound: make(chan wire.Frame, outboundQueueDepth),
		done:     make(chan struct{}),
	}
}

func (c *conn) setState(s connState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

func (c *conn) getState() connState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// serve runs the reader loop on the calling goroutine and starts a
// writer goroutine; it blocks until the connection terminates.
func (c *conn) serve() {
	c.logger.Info().Msg("connection accepted")
	defer c.logger.Info().Msg("connection closed")

	metrics.ConnectionsTotal.Inc()
	metrics.ConnectionsActive.Inc()
	defer metrics.ConnectionsActive.Dec()
	defer metrics.OutboundQueueDepth.DeleteLabelValues(c.id)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writeLoop()
	}()

	c.readLoop()

	close(c.outbound)
	wg.Wait()
	c.setState(stateTerminated)
	_ = c.raw.Close()
}

func (c *conn) readLoop() {
	for {
		frame, err := c.reader.ReadFrame()
		if err != nil {
			c.logger.Debug().Err(err).Msg("read loop terminating")
			return
		}
		metrics.FrameBytesRead.Add(float64(len(frame.Payload) + 5)) // tag(1) + length(4) prefix

		reply, terminate := c.disp.handle(c, frame)
		if reply != nil {
			select {
			case c.outbound <- *reply:
				metrics.OutboundQueueDepth.WithLabelValues(c.id).Set(float64(len(c.outbound)))
			case <-c.done:
				return
			}
		}
		if terminate {
			return
		}
	}
}

func (c *conn) writeLoop() {
	for frame := range c.outbound {
		if err := c.writer.WriteFrame(frame.Tag, frame.Payload); err != nil {
			c.logger.Debug().Err(err).Msg("write loop terminating")
			close(c.done)
			return
		}
		metrics.FrameBytesWritten.Add(float64(len(frame.Payload) + 5)) // tag(1) + length(4) prefix
	}
}

// enqueueClose asks the writer goroutine to send CloseCommunication and
// stop; used by the dispatcher when it decides to terminate a connection
// from within handle() rather than waiting for the next read to fail.
func (c *conn) enqueueClose() {
	payload, err := protocol.Encode(protocol.NewCloseCommunication())
	if err != nil {
		return
	}
	select {
	case c.outbound <- wire.Frame{Tag: protocol.TagCloseCommunication, Payload: payload}:
	case <-c.done:
	}
}
