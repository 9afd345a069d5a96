package web3

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

/*
One request in a batch. Before the call, set ".Method", ".Params", and
optionally ".Result", which must be a pointer. After the call, either the
result has been decoded into ".Result", or ".Error" describes what went wrong
for this element alone.
*/
type BatchElem struct {
	Method string
	Params []interface{}
	Result interface{}
	Error  error
}

/*
Sends several requests as one batch over the given transport. Outcomes are
matched to elements by request id, never by position in the reply. A failure
of one element doesn't affect the others.

If the context's deadline passes before an element's response arrives, that
element fails with "ErrMissingBatchResponse"; if the context is canceled, it
fails with the context's error. Elements already resolved keep their outcome.
*/
func CallBatch(ctx context.Context, trans Trans, batch []BatchElem) error {
	return trans.CallBatch(ctx, batch)
}

func (self *duplex) CallBatch(ctx context.Context, batch []BatchElem) error {
	if len(batch) == 0 {
		return nil
	}
	if self.State() != StateOpen {
		return failBatch(batch, closedError(nil))
	}

	slots, frame, err := prepareBatch(self.pending, self.nextId, batch)
	if err != nil {
		return failBatch(batch, err)
	}

	err = self.send(ctx, frame)
	if err != nil {
		for _, slot := range slots {
			self.pending.abandon(slot.id)
		}
		return failBatch(batch, err)
	}

	collectBatch(ctx, self.pending, slots, batch)
	for i := range batch {
		self.metrics.call(self.kind, batch[i].Error)
	}
	return nil
}

// Allocates ids, registers all of them, and encodes the batch frame.
func prepareBatch(table *pendingTable, nextId func() uint64, batch []BatchElem) ([]*slot, []byte, error) {
	ids := make([]uint64, len(batch))
	reqs := make([]rpcRequest, len(batch))
	for i, elem := range batch {
		ids[i] = nextId()
		reqs[i] = newRequest(ids[i], elem.Method, elem.Params)
	}

	frame, err := json.Marshal(reqs)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to encode RPC batch")
	}

	slots, err := table.registerBatch(ids)
	if err != nil {
		return nil, nil, err
	}
	return slots, frame, nil
}

func collectBatch(ctx context.Context, table *pendingTable, slots []*slot, batch []BatchElem) {
	for i, slot := range slots {
		val := table.wait(ctx, slot)
		if errors.Is(val.err, context.DeadlineExceeded) {
			val.err = errors.Wrapf(ErrMissingBatchResponse, "no response for %q before the deadline", batch[i].Method)
		}
		batch[i].Error = val.decode(batch[i].Result)
	}
}

func failBatch(batch []BatchElem, err error) error {
	for i := range batch {
		batch[i].Error = err
	}
	return err
}

/*
Convenience for building a batch out of typed calls:

	var batch web3.Batch
	var num web3.HexUint64
	var balance web3.HexInt
	batch.Add(&num, "eth_blockNumber")
	batch.Add(&balance, "eth_getBalance", addr, web3.BlockNumberLatest)
	err := batch.Submit(ctx, trans)
*/
type Batch struct {
	Elems []BatchElem
}

// Queues a call; returns its index in ".Elems".
func (self *Batch) Add(out interface{}, method string, params ...interface{}) int {
	self.Elems = append(self.Elems, BatchElem{Method: method, Params: params, Result: out})
	return len(self.Elems) - 1
}

/*
Sends every queued call. Returns the first error among the elements, after all
of them have been resolved; inspect ".Elems" for individual errors.
*/
func (self *Batch) Submit(ctx context.Context, trans Trans) error {
	err := trans.CallBatch(ctx, self.Elems)
	if err != nil {
		return err
	}
	for _, elem := range self.Elems {
		if elem.Error != nil {
			return errors.WithMessagef(elem.Error, `error in %q`, elem.Method)
		}
	}
	return nil
}
