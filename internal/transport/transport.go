// Package transport implements the workspace server's framed stdio
// transport (spec component C3): newline-delimited JSON-RPC messages read
// from an [io.Reader] and written to an [io.Writer], with buffering across
// partial reads and parse errors surfaced as events rather than crashes.
//
// Grounded on the stdio read-loop idiom common to the retrieved MCP server
// snippets (bufio.NewReader + ReadBytes('\n')), generalized to accept
// injectable reader/writer pairs so tests can drive it over [io.Pipe]
// instead of hardcoding os.Stdin/os.Stdout.
package transport

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"sync"

	"github.com/cursorcli-mcp/workspace-server/internal/mcperr"
)

// Message is one parsed JSON value read from the transport, or a value to
// be written.
type Message = json.RawMessage

// EventKind distinguishes the two asynchronous event types a Transport can
// emit besides parsed messages.
type EventKind int

const (
	// EventInvalidFrame reports a line that failed to parse as JSON (spec
	// §4.1). The stream is NOT terminated.
	EventInvalidFrame EventKind = iota
	// EventClose reports that the input stream reached EOF (spec §4.1).
	EventClose
)

// Event is an out-of-band occurrence delivered on [Transport.Events].
type Event struct {
	Kind EventKind
	Err  error // non-nil for EventInvalidFrame
}

// Transport reads newline-delimited JSON messages from an io.Reader and
// writes them to an io.Writer, one JSON value per line (spec §4.1).
//
// A Transport must be constructed with [New] and started with
// [Transport.Start] before messages are delivered. It is safe to call
// [Transport.Send] concurrently with reading.
type Transport struct {
	r io.Reader
	w io.Writer

	messages chan Message
	events   chan Event

	writeMu sync.Mutex

	startOnce sync.Once
	closeOnce sync.Once
	closed    chan struct{}
	started   bool
	mu        sync.Mutex
}

// New constructs a Transport bound to r and w. Nothing is read or written
// until [Transport.Start] is called.
func New(r io.Reader, w io.Writer) *Transport {
	return &Transport{
		r:        r,
		w:        w,
		messages: make(chan Message, 16),
		events:   make(chan Event, 16),
		closed:   make(chan struct{}),
	}
}

// Messages returns the channel of successfully parsed inbound values, in
// arrival order (spec §5 "Inbound frames are parsed in arrival order").
// The channel is closed once the read loop exits (EOF or Stop).
func (t *Transport) Messages() <-chan Message { return t.messages }

// Events returns the channel of asynchronous transport events (parse
// errors and the terminal close event).
func (t *Transport) Events() <-chan Event { return t.events }

// Start begins the read loop in a background goroutine. It is idempotent
// before [Transport.Stop]; it fails with [mcperr.InternalError] if the
// transport has already been closed.
func (t *Transport) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	select {
	case <-t.closed:
		return mcperr.New(mcperr.InternalError, "transport: cannot start a closed transport")
	default:
	}

	if t.started {
		return nil
	}
	t.started = true
	go t.readLoop()
	return nil
}

// readLoop splits the input stream on '\n', retaining a partial trailing
// chunk across reads (spec §4.1), and parses each complete line as one
// JSON value. Blank lines are skipped silently; malformed lines yield an
// [EventInvalidFrame] event and reading continues.
func (t *Transport) readLoop() {
	defer close(t.messages)
	defer func() {
		select {
		case t.events <- Event{Kind: EventClose}:
		case <-t.closed:
		}
		close(t.events)
	}()

	reader := bufio.NewReaderSize(t.r, 64*1024)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			t.handleLine(bytes.TrimRight(line, "\r\n"))
		}
		if err != nil {
			return
		}
		select {
		case <-t.closed:
			return
		default:
		}
	}
}

func (t *Transport) handleLine(line []byte) {
	if len(bytes.TrimSpace(line)) == 0 {
		return
	}

	var raw json.RawMessage
	if err := json.Unmarshal(line, &raw); err != nil {
		ev := Event{Kind: EventInvalidFrame, Err: mcperr.Wrap(mcperr.InvalidFrame, "transport: malformed JSON frame", err)}
		select {
		case t.events <- ev:
		case <-t.closed:
		}
		return
	}

	select {
	case t.messages <- raw:
	case <-t.closed:
	}
}

// Send serializes message as JSON followed by a single newline and writes
// it atomically relative to other Send calls, never coalescing multiple
// messages into one write (spec §4.1 "Observable side effects"). Fails
// with [mcperr.InternalError] if the transport has not been started
// (context "reason": "not_started") or has been closed ("reason": "closed").
func (t *Transport) Send(message any) error {
	select {
	case <-t.closed:
		return mcperr.New(mcperr.InternalError, "transport: not connected").WithContext("reason", "closed")
	default:
	}

	t.mu.Lock()
	started := t.started
	t.mu.Unlock()
	if !started {
		return mcperr.New(mcperr.InternalError, "transport: not connected").WithContext("reason", "not_started")
	}

	data, err := json.Marshal(message)
	if err != nil {
		return mcperr.Wrap(mcperr.InternalError, "transport: marshal outbound message", err)
	}
	data = append(data, '\n')

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.w.Write(data); err != nil {
		return mcperr.Wrap(mcperr.InternalError, "transport: write outbound message", err)
	}
	return nil
}

// Stop idempotently closes the transport. It signals the read loop to
// stop consuming further input and unblocks [Transport.Send] with a
// NotConnected-style failure, per spec §4.1 "close (idempotent)". Stop
// does not close the underlying reader/writer — callers own those.
func (t *Transport) Stop() {
	t.closeOnce.Do(func() {
		close(t.closed)
	})
}
