package web3

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Lifecycle of a persistent connection. Closed is terminal.
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateOpen
	StateClosed
)

// Implements "fmt.Stringer".
func (self ConnState) String() string {
	switch self {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

/*
Framed, full-duplex medium under a persistent transport. "readFrame" is only
ever called from the receive loop; "writeFrame" is serialized by the caller;
"close" may be called concurrently with either and must unblock them.
*/
type frameConn interface {
	readFrame() ([]byte, error)
	writeFrame(ctx context.Context, frame []byte) error
	close() error
}

/*
Shared engine of WsTrans and IpcTrans: many concurrent calls and subscriptions
over one connection. Writes are serialized; a single receive loop reads frames
in arrival order and hands responses to the correlation table and
notifications to the subscription router.
*/
type duplex struct {
	kind    TransKind
	target  string
	log     *zap.Logger
	metrics *Metrics
	nextId  func() uint64

	state atomic.Int32

	// Unavoidable bottleneck
	writeLock sync.Mutex
	conn      frameConn

	pending *pendingTable
	subs    *subRouter

	closeOnce sync.Once
	done      chan struct{}
}

func newDuplex(kind TransKind, target string, conf *dialConf) *duplex {
	self := &duplex{
		kind:    kind,
		target:  target,
		log:     conf.logger.With(zap.String("transport", string(kind)), zap.String("url", target)),
		metrics: conf.metrics,
		nextId:  conf.nextId,
		pending: newPendingTable(),
		done:    make(chan struct{}),
	}
	self.pending.onSize = conf.metrics.pendingGauge(kind)
	self.subs = newSubRouter(kind, conf.metrics)
	self.state.Store(int32(StateConnecting))
	return self
}

// Connecting -> Open. Starts the receive loop.
func (self *duplex) open(conn frameConn) {
	self.conn = conn
	self.state.Store(int32(StateOpen))
	self.log.Info("connected")
	go self.receiveLoop()
}

// Connecting -> Closed, when the dial itself failed.
func (self *duplex) fail(err error) {
	self.closeOnce.Do(func() {
		self.state.Store(int32(StateClosed))
		self.pending.drain(closedError(err))
		self.subs.closeAll()
		close(self.done)
	})
}

func (self *duplex) State() ConnState { return ConnState(self.state.Load()) }

func (self *duplex) Done() <-chan struct{} { return self.done }

/*
Tears the connection down and waits for the receive loop to exit. Pending calls
fail with "ErrClosed", and every subscription stream ends. Idempotent.
*/
func (self *duplex) Close() error {
	self.teardown(nil)
	<-self.done
	return nil
}

// Makes an RPC call.
func (self *duplex) Call(ctx context.Context, out interface{}, method string, params ...interface{}) error {
	slot, err := self.start(ctx, method, params, nil)
	if err == nil {
		err = self.pending.wait(ctx, slot).decode(out)
	}
	self.metrics.call(self.kind, err)
	return err
}

/*
Registers and sends one request. The optional hook runs on the receive loop
when the response arrives, before the caller sees it.
*/
func (self *duplex) start(ctx context.Context, method string, params []interface{}, hook func(outcome) outcome) (*slot, error) {
	if self.State() != StateOpen {
		return nil, closedError(nil)
	}

	id := self.nextId()
	slot, err := self.pending.register(id, hook)
	if err != nil {
		return nil, err
	}

	frame, err := json.Marshal(newRequest(id, method, params))
	if err != nil {
		self.pending.abandon(id)
		return nil, errors.Wrapf(err, "failed to encode RPC request %q", method)
	}

	err = self.send(ctx, frame)
	if err != nil {
		self.pending.abandon(id)
		return nil, err
	}
	return slot, nil
}

/*
Writes one whole frame. A write failure tears the connection down: the medium
may have accepted part of the frame, so nothing after it can be trusted.
*/
func (self *duplex) send(ctx context.Context, frame []byte) error {
	self.writeLock.Lock()
	defer self.writeLock.Unlock()

	if self.State() != StateOpen {
		return closedError(nil)
	}

	self.log.Debug("sending frame", zap.ByteString("frame", frame))
	err := self.conn.writeFrame(ctx, frame)
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		err = &TransportError{Kind: KindWrite, Err: err}
		self.teardown(err)
		return err
	}
	return nil
}

/*
Note: we receive and unmarshal separately. A receiving failure indicates a
disconnect. An unmarshaling error indicates a malformed message, but not
necessarily a connection problem, so the loop goes on.
*/
func (self *duplex) receiveLoop() {
	defer close(self.done)

	for {
		frame, err := self.conn.readFrame()
		if err != nil {
			if self.State() == StateOpen {
				self.log.Info("disconnected", zap.Error(err))
			}
			self.teardown(&TransportError{Kind: KindRead, Err: err})
			return
		}
		self.dispatch(frame)
	}
}

func (self *duplex) dispatch(frame []byte) {
	self.log.Debug("received frame", zap.ByteString("frame", frame))

	switch frameHead(frame) {
	case '[':
		var msgs []rpcMessage
		err := json.Unmarshal(frame, &msgs)
		if err != nil {
			self.malformed(frame, err.Error())
			return
		}

		// A batch reply arrives as one array. Members of its batch that aren't
		// in it are never coming.
		groups := map[*batchGroup]struct{}{}
		for _, msg := range msgs {
			if !msg.isResponse() {
				self.malformed(frame, "batch member is not a response")
				continue
			}
			group := self.dispatchResponse(msg)
			if group != nil {
				groups[group] = struct{}{}
			}
		}
		for group := range groups {
			self.pending.finishGroup(group)
		}

	case '{':
		var msg rpcMessage
		err := json.Unmarshal(frame, &msg)
		if err != nil {
			self.malformed(frame, err.Error())
			return
		}

		switch {
		case msg.isResponse():
			self.dispatchResponse(msg)
		case msg.isNotification():
			self.dispatchNotification(frame, msg)
		case msg.isRejection():
			self.dispatchRejection(frame, msg)
		default:
			self.malformed(frame, "neither a response nor a notification")
		}

	default:
		self.malformed(frame, "not a JSON object or array")
	}
}

// Returns the batch group of the resolved request, if any.
func (self *duplex) dispatchResponse(msg rpcMessage) *batchGroup {
	id, err := parseId(msg.Id)
	if err != nil {
		self.malformed(msg.Id, err.Error())
		return nil
	}

	slot := self.pending.take(id)
	if slot == nil {
		self.log.Warn("dropping response to unknown request", zap.Uint64("id", id))
		self.metrics.orphan(self.kind)
		return nil
	}

	slot.resolve(msg.outcome())
	return slot.group
}

// A batch the node refused as a whole is answered by one error without an id.
// Attributable only while a single batch is outstanding.
func (self *duplex) dispatchRejection(frame []byte, msg rpcMessage) {
	if self.pending.rejectBatch(msg.Error) {
		self.log.Warn("batch rejected", zap.Error(msg.Error))
		return
	}
	self.malformed(frame, "error without an id matches no single batch")
}

func (self *duplex) dispatchNotification(frame []byte, msg rpcMessage) {
	var params rpcNotificationParams
	err := json.Unmarshal(msg.Params, &params)
	if err != nil {
		self.malformed(frame, err.Error())
		return
	}

	key, err := subscriptionKey(params.Subscription)
	if err != nil {
		self.malformed(frame, err.Error())
		return
	}

	if !self.subs.route(key, params.Result) {
		self.log.Warn("dropping notification for unknown subscription",
			zap.String("subscription", key), zap.String("method", msg.Method))
		self.metrics.unroutableNotification(self.kind)
	}
}

func (self *duplex) malformed(frame []byte, reason string) {
	self.log.Warn("dropping malformed message", zap.Error(&ProtocolError{Reason: reason, Frame: frame}),
		zap.ByteString("frame", frame))
	self.metrics.malformedFrame(self.kind)
}

/*
Open -> Closed. Closes the medium, fails every pending call with a
"KindClosed" error carrying the cause, and ends every subscription stream.
Later calls fail immediately. Runs once; later causes are ignored.
*/
func (self *duplex) teardown(cause error) {
	self.closeOnce.Do(func() {
		self.state.Store(int32(StateClosed))
		if self.conn != nil {
			self.conn.close()
		}
		self.pending.drain(closedError(cause))
		self.subs.closeAll()
		self.log.Info("connection closed", zap.NamedError("cause", cause))
	})
}

/*
Creates a subscription with the given params. The route is registered by the
receive loop as soon as the subscribe response is read, so notifications
following it in the stream are queued rather than dropped.

See https://wiki.parity.io/JSONRPC-eth_pubsub-module.html for details on the
Ethereum subscriptions API.
*/
func (self *duplex) Subscribe(ctx context.Context, namespace string, params ...interface{}) (*Subscription, error) {
	method := namespace + "_subscribe"

	var sub *Subscription
	hook := func(val outcome) outcome {
		if val.err != nil {
			return val
		}
		key, err := subscriptionKey(val.result)
		if err != nil {
			return outcome{err: errors.Wrap(err, "failed to subscribe")}
		}
		created := newSubscription(self, namespace, key, val.result)
		err = self.subs.add(created)
		if err != nil {
			return outcome{err: err}
		}
		sub = created
		return val
	}

	slot, err := self.start(ctx, method, params, hook)
	if err == nil {
		err = self.pending.wait(ctx, slot).err
	}
	self.metrics.call(self.kind, err)
	if err != nil {
		return nil, err
	}
	return sub, nil
}
