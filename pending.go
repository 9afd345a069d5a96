package web3

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

/*
Single-use completion slot for one outstanding request. Exactly one outcome is
ever delivered; a second delivery is a programming error and panics instead of
silently overwriting the first.
*/
type slot struct {
	id    uint64
	group *batchGroup
	done  chan outcome

	// Optional. Runs on the goroutine that resolves the slot, before the outcome
	// reaches the waiting caller, and may replace the outcome.
	onResolve func(outcome) outcome

	delivered atomic.Bool
}

func (self *slot) deliver(val outcome) {
	if !self.delivered.CompareAndSwap(false, true) {
		panic(errors.Errorf("internal error: RPC request %d resolved twice", self.id))
	}
	self.done <- val
}

func (self *slot) resolve(val outcome) {
	if self.onResolve != nil {
		val = self.onResolve(val)
	}
	self.deliver(val)
}

// Ids registered together by one batch call.
type batchGroup struct {
	ids []uint64
}

/*
Correlation table: maps outstanding request ids to their completion slots.
Register, resolve, abandon and drain are atomic with respect to each other.
After "drain", the table is terminal and rejects new registrations with the
drain error.
*/
type pendingTable struct {
	lock  sync.Mutex
	slots map[uint64]*slot
	err   error

	// Optional, for reporting the table size.
	onSize func(int)
}

func newPendingTable() *pendingTable {
	return &pendingTable{slots: map[uint64]*slot{}}
}

func (self *pendingTable) register(id uint64, onResolve func(outcome) outcome) (*slot, error) {
	self.lock.Lock()
	defer self.lock.Unlock()

	if self.err != nil {
		return nil, self.err
	}
	if self.slots[id] != nil {
		return nil, errors.Wrapf(ErrDuplicateId, "id %d", id)
	}

	out := newSlot(id, nil)
	out.onResolve = onResolve
	self.slots[id] = out
	self.sized()
	return out, nil
}

// Registers every id or none. Ids must be unique, within the batch as well as
// against the table.
func (self *pendingTable) registerBatch(ids []uint64) ([]*slot, error) {
	self.lock.Lock()
	defer self.lock.Unlock()

	if self.err != nil {
		return nil, self.err
	}

	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		_, dup := seen[id]
		if dup || self.slots[id] != nil {
			return nil, errors.Wrapf(ErrDuplicateId, "id %d", id)
		}
		seen[id] = struct{}{}
	}

	group := &batchGroup{ids: ids}
	out := make([]*slot, len(ids))
	for i, id := range ids {
		out[i] = newSlot(id, group)
		self.slots[id] = out[i]
	}
	self.sized()
	return out, nil
}

// Removes and returns the slot for this id, or nil if nobody is waiting for it.
func (self *pendingTable) take(id uint64) *slot {
	self.lock.Lock()
	defer self.lock.Unlock()

	out := self.slots[id]
	if out != nil {
		delete(self.slots, id)
		self.sized()
	}
	return out
}

// Returns false if the id is unknown; the caller treats that outcome as an
// orphan.
func (self *pendingTable) resolve(id uint64, val outcome) bool {
	slot := self.take(id)
	if slot == nil {
		return false
	}
	slot.resolve(val)
	return true
}

// Caller gave up. Returns false if the slot was already resolved or drained.
func (self *pendingTable) abandon(id uint64) bool {
	return self.take(id) != nil
}

/*
Fails every member of the group that is still waiting with
"ErrMissingBatchResponse". Used once the batch reply is known to be complete.
*/
func (self *pendingTable) finishGroup(group *batchGroup) {
	self.lock.Lock()
	var missing []*slot
	for _, id := range group.ids {
		slot := self.slots[id]
		if slot != nil && slot.group == group {
			delete(self.slots, id)
			missing = append(missing, slot)
		}
	}
	self.sized()
	self.lock.Unlock()

	for _, slot := range missing {
		slot.deliver(outcome{err: errors.Wrapf(ErrMissingBatchResponse, "request id %d", slot.id)})
	}
}

/*
Fails every waiting member of the only outstanding batch with the given error.
Returns false, touching nothing, when no batch or more than one batch is
outstanding, since the error can't be attributed.
*/
func (self *pendingTable) rejectBatch(err error) bool {
	self.lock.Lock()
	var group *batchGroup
	for _, slot := range self.slots {
		if slot.group == nil || slot.group == group {
			continue
		}
		if group != nil {
			self.lock.Unlock()
			return false
		}
		group = slot.group
	}
	if group == nil {
		self.lock.Unlock()
		return false
	}

	var rejected []*slot
	for _, id := range group.ids {
		slot := self.slots[id]
		if slot != nil && slot.group == group {
			delete(self.slots, id)
			rejected = append(rejected, slot)
		}
	}
	self.sized()
	self.lock.Unlock()

	for _, slot := range rejected {
		slot.deliver(outcome{err: err})
	}
	return true
}

// Resolves every pending slot with the given error and makes the table
// terminal.
func (self *pendingTable) drain(err error) {
	self.lock.Lock()
	if self.err == nil {
		self.err = err
	}
	slots := self.slots
	self.slots = map[uint64]*slot{}
	self.sized()
	self.lock.Unlock()

	for _, slot := range slots {
		slot.deliver(outcome{err: err})
	}
}

func (self *pendingTable) size() int {
	self.lock.Lock()
	defer self.lock.Unlock()
	return len(self.slots)
}

// Must be called with the lock held.
func (self *pendingTable) sized() {
	if self.onSize != nil {
		self.onSize(len(self.slots))
	}
}

/*
Waits for the slot's outcome. If the context ends first, the slot is abandoned
and the context error is returned; a response arriving later becomes an
orphan. An outcome that is already available always wins over cancelation.
*/
func (self *pendingTable) wait(ctx context.Context, slot *slot) outcome {
	select {
	case val := <-slot.done:
		return val
	default:
	}

	select {
	case val := <-slot.done:
		return val
	case <-ctx.Done():
		if !self.abandon(slot.id) {
			return <-slot.done
		}
		return outcome{err: errors.WithStack(ctx.Err())}
	}
}

func newSlot(id uint64, group *batchGroup) *slot {
	return &slot{id: id, group: group, done: make(chan outcome, 1)}
}
