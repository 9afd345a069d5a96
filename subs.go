package web3

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
)

/*
Live subscription on a persistent transport. Notifications arrive on
".Notifications()" in the order the server sent them, without loss: each
subscription has an unbounded queue, so a slow reader never stalls the
connection or other subscriptions.

The channel is closed when the stream ends: after "Unsubscribe", or after the
connection closes and everything already received has been delivered.
*/
type Subscription struct {
	id        string
	rawId     json.RawMessage
	namespace string
	owner     *duplex
	out       chan json.RawMessage

	lock  sync.Mutex
	queue []json.RawMessage
	ended bool
	wake  chan struct{}

	stop     chan struct{}
	stopOnce sync.Once

	unsubLock sync.Mutex
}

// The id is the routing key; "rawId" is the id as the server sent it, and is
// what the server expects back on unsubscribe.
func newSubscription(owner *duplex, namespace string, id string, rawId json.RawMessage) *Subscription {
	self := &Subscription{
		id:        id,
		rawId:     rawId,
		namespace: namespace,
		owner:     owner,
		out:       make(chan json.RawMessage),
		wake:      make(chan struct{}, 1),
		stop:      make(chan struct{}),
	}
	go self.forward()
	return self
}

// Server-assigned subscription id.
func (self *Subscription) Id() string { return self.id }

// Raw "result" payload of each notification, in arrival order.
func (self *Subscription) Notifications() <-chan json.RawMessage { return self.out }

/*
Asks the server to cancel the subscription, then retires its route and closes
the notification channel. Calling this again, or after the connection has
closed, is a no-op that returns nil.
*/
func (self *Subscription) Unsubscribe(ctx context.Context) error {
	self.unsubLock.Lock()
	defer self.unsubLock.Unlock()

	if !self.owner.subs.has(self.id) {
		self.halt()
		return nil
	}

	method := self.namespace + "_unsubscribe"
	var ok bool
	err := self.owner.Call(ctx, &ok, method, self.rawId)
	if err != nil {
		// Lost the race against a connection close.
		if !self.owner.subs.has(self.id) {
			self.halt()
			return nil
		}
		return errors.Wrapf(err, `error in %q`, method)
	}

	if self.owner.subs.retire(self.id) != nil {
		self.halt()
	}
	return nil
}

// Queues a notification. Never blocks.
func (self *Subscription) push(val json.RawMessage) {
	self.lock.Lock()
	if self.ended {
		self.lock.Unlock()
		return
	}
	self.queue = append(self.queue, val)
	self.lock.Unlock()
	self.signal()
}

// No more input. Whatever is queued is still delivered.
func (self *Subscription) end() {
	self.lock.Lock()
	self.ended = true
	self.lock.Unlock()
	self.signal()
}

// No more input, and queued notifications are discarded.
func (self *Subscription) halt() {
	self.end()
	self.stopOnce.Do(func() { close(self.stop) })
}

func (self *Subscription) signal() {
	select {
	case self.wake <- struct{}{}:
	default:
	}
}

func (self *Subscription) pop() (json.RawMessage, bool, bool) {
	self.lock.Lock()
	defer self.lock.Unlock()

	if len(self.queue) == 0 {
		return nil, false, self.ended
	}
	val := self.queue[0]
	self.queue[0] = nil
	self.queue = self.queue[1:]
	return val, true, self.ended
}

func (self *Subscription) forward() {
	defer close(self.out)

	for {
		val, ok, ended := self.pop()
		if ok {
			select {
			case self.out <- val:
			case <-self.stop:
				return
			}
			continue
		}
		if ended {
			return
		}

		select {
		case <-self.wake:
		case <-self.stop:
			return
		}
	}
}

/*
Routes notifications by subscription id. Only the receive loop adds routes
and routes notifications, but retirement can come from any goroutine.
*/
type subRouter struct {
	kind    TransKind
	metrics *Metrics

	lock   sync.Mutex
	subs   map[string]*Subscription
	closed bool
}

func newSubRouter(kind TransKind, metrics *Metrics) *subRouter {
	return &subRouter{kind: kind, metrics: metrics, subs: map[string]*Subscription{}}
}

func (self *subRouter) add(sub *Subscription) error {
	self.lock.Lock()
	defer self.lock.Unlock()

	if self.closed {
		sub.halt()
		return closedError(nil)
	}
	if self.subs[sub.id] != nil {
		sub.halt()
		return errors.Errorf("duplicate subscription id %q", sub.id)
	}
	self.subs[sub.id] = sub
	self.metrics.subscriptions(self.kind, 1)
	return nil
}

// Returns false if no subscription has this id.
func (self *subRouter) route(id string, val json.RawMessage) bool {
	self.lock.Lock()
	sub := self.subs[id]
	self.lock.Unlock()

	if sub == nil {
		return false
	}
	sub.push(val)
	return true
}

func (self *subRouter) has(id string) bool {
	self.lock.Lock()
	defer self.lock.Unlock()
	return self.subs[id] != nil
}

// Removes the route. Returns the removed subscription, or nil if it was
// already gone.
func (self *subRouter) retire(id string) *Subscription {
	self.lock.Lock()
	defer self.lock.Unlock()

	sub := self.subs[id]
	if sub != nil {
		delete(self.subs, id)
		self.metrics.subscriptions(self.kind, -1)
	}
	return sub
}

// Ends every stream and refuses new routes.
func (self *subRouter) closeAll() {
	self.lock.Lock()
	subs := self.subs
	self.subs = map[string]*Subscription{}
	self.closed = true
	self.metrics.subscriptions(self.kind, -len(subs))
	self.lock.Unlock()

	for _, sub := range subs {
		sub.end()
	}
}

func (self *subRouter) size() int {
	self.lock.Lock()
	defer self.lock.Unlock()
	return len(self.subs)
}
