package web3

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

/*
Subscribes to future blocks, sending them over the provided channel. Returns an
error when the context is canceled, or when the connection is interrupted. Does
NOT automatically resubscribe. Always closes the channel before returning, and
unsubscribes if the connection is still up.

Requires a persistent transport; over HTTP, fails with "ErrUnsupported". See
"PollBlocks" for a polling alternative.
*/
func SubscribeNewHeads(ctx context.Context, trans Trans, out chan<- BlockHead) error {
	return subscribeDecoded(ctx, trans, out, "newHeads")
}

// Same as "SubscribeNewHeads", but for logs matching the filter. Removed logs
// from chain reorganizations arrive with ".Removed" set.
func SubscribeLogs(ctx context.Context, trans Trans, filter LogFilter, out chan<- LogEntry) error {
	return subscribeDecoded(ctx, trans, out, "logs", filter.normalize())
}

// Same as "SubscribeNewHeads", but for hashes of transactions entering the
// node's pool.
func SubscribeNewPendingTxs(ctx context.Context, trans Trans, out chan<- Hash) error {
	return subscribeDecoded(ctx, trans, out, "newPendingTransactions")
}

// Same as "SubscribeNewHeads", but for changes in the node's sync status.
func SubscribeSyncing(ctx context.Context, trans Trans, out chan<- SyncState) error {
	return subscribeDecoded(ctx, trans, out, "syncing")
}

func subscribeDecoded[T any](ctx context.Context, trans Trans, out chan<- T, params ...interface{}) error {
	defer close(out)

	sub, err := Subscribe(ctx, trans, "eth", params...)
	if err != nil {
		return errors.Wrap(err, `error in "eth_subscribe"`)
	}
	return streamDecoded(ctx, sub, out)
}

// Decodes notifications into `out` until the context ends or the stream
// fails, then unsubscribes. Doesn't close `out`.
func streamDecoded[T any](ctx context.Context, sub *Subscription, out chan<- T) error {
	defer unsubscribeQuietly(ctx, sub)

	for {
		var input json.RawMessage
		var ok bool

		select {
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case input, ok = <-sub.Notifications():
		}
		if !ok {
			return errors.Wrap(ErrClosed, "subscription ended")
		}

		var val T
		err := json.Unmarshal(input, &val)
		if err != nil {
			return errors.Wrap(err, "failed to decode subscription notification")
		}

		select {
		case out <- val:
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		}
	}
}

// Unsubscribes even if `ctx` is already canceled.
func unsubscribeQuietly(ctx context.Context, sub *Subscription) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unsubscribeTimeout)
	defer cancel()
	_ = sub.Unsubscribe(ctx)
}
