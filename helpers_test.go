package web3

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

const testTimeout = 5 * time.Second

/*
In-memory frameConn. The test plays the node: it reads what the client wrote
from "sent" and feeds replies through "reply".
*/
type fakeConn struct {
	incoming chan []byte
	sent     chan []byte
	closed   chan struct{}
	once     sync.Once

	failWrites atomic.Bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		incoming: make(chan []byte, 64),
		sent:     make(chan []byte, 64),
		closed:   make(chan struct{}),
	}
}

func (self *fakeConn) readFrame() ([]byte, error) {
	select {
	case frame := <-self.incoming:
		return frame, nil
	case <-self.closed:
		return nil, io.EOF
	}
}

func (self *fakeConn) writeFrame(_ context.Context, frame []byte) error {
	if self.failWrites.Load() {
		return errors.New("broken pipe")
	}
	select {
	case self.sent <- frame:
		return nil
	case <-self.closed:
		return io.ErrClosedPipe
	}
}

func (self *fakeConn) close() error {
	self.once.Do(func() { close(self.closed) })
	return nil
}

func (self *fakeConn) reply(frame string) { self.incoming <- []byte(frame) }

type sentRequest struct {
	Jsonrpc string            `json:"jsonrpc"`
	Id      uint64            `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

func (self *fakeConn) next(t testing.TB) []byte {
	t.Helper()
	select {
	case frame := <-self.sent:
		return frame
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for an outgoing frame")
		return nil
	}
}

func (self *fakeConn) nextRequest(t testing.TB) sentRequest {
	t.Helper()
	var out sentRequest
	frame := self.next(t)
	require.NoError(t, json.Unmarshal(frame, &out), "frame: %s", frame)
	return out
}

func (self *fakeConn) nextBatch(t testing.TB) []sentRequest {
	t.Helper()
	var out []sentRequest
	frame := self.next(t)
	require.NoError(t, json.Unmarshal(frame, &out), "frame: %s", frame)
	return out
}

func (self *fakeConn) requireSilent(t testing.TB) {
	t.Helper()
	select {
	case frame := <-self.sent:
		t.Fatalf("unexpected outgoing frame: %s", frame)
	default:
	}
}

func newTestDuplex(t testing.TB, opts ...Option) (*duplex, *fakeConn) {
	conn := newFakeConn()
	self := newDuplex(TransWs, "test", newDialConf(opts))
	self.open(conn)
	t.Cleanup(func() { _ = self.Close() })
	return self, conn
}

// Id source that continues from `last`.
func idsFrom(last uint64) Option {
	var ids atomic.Uint64
	ids.Store(last)
	return withIdSource(func() uint64 { return ids.Add(1) })
}

func async(fun func() error) <-chan error {
	out := make(chan error, 1)
	go func() { out <- fun() }()
	return out
}

func await(t testing.TB, errs <-chan error) error {
	t.Helper()
	select {
	case err := <-errs:
		return err
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for a call to finish")
		return nil
	}
}

func receive(t testing.TB, input <-chan json.RawMessage) (json.RawMessage, bool) {
	t.Helper()
	select {
	case val, ok := <-input:
		return val, ok
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for a notification")
		return nil, false
	}
}

func requireNoErr(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("%+v", err)
	}
}

func requireEqual(t testing.TB, expected, actual interface{}) {
	t.Helper()
	require.Equal(t, expected, actual, "expected:\n%v\nactual:\n%v", spew.Sdump(expected), spew.Sdump(actual))
}
