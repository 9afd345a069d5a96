package web3

import "sync/atomic"

/*
Hands out request ids for one transport. Ids start at 1 and strictly increase,
so two calls in flight on the same transport never share an id. Safe for
concurrent use.
*/
type idAllocator struct {
	last atomic.Uint64
}

func (self *idAllocator) next() uint64 { return self.last.Add(1) }

func newIdSource() func() uint64 {
	var ids idAllocator
	return ids.next
}
