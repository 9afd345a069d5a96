package web3

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

/*
Polling filters. Unlike subscriptions, these work over every transport,
including HTTP: the node accumulates changes between "eth_getFilterChanges"
calls. Filters that aren't polled for a while are removed by the node.
*/

// Strongly-typed version of the "eth_newFilter" RPC method.
func EthNewFilter(ctx context.Context, trans Trans, filter LogFilter) (FilterId, error) {
	var out FilterId
	err := trans.Call(ctx, &out, "eth_newFilter", filter.normalize())
	return out, errors.Wrap(err, `error in "eth_newFilter"`)
}

// Strongly-typed version of the "eth_newBlockFilter" RPC method.
func EthNewBlockFilter(ctx context.Context, trans Trans) (FilterId, error) {
	var out FilterId
	err := trans.Call(ctx, &out, "eth_newBlockFilter")
	return out, errors.Wrap(err, `error in "eth_newBlockFilter"`)
}

// Strongly-typed version of the "eth_newPendingTransactionFilter" RPC method.
func EthNewPendingTxFilter(ctx context.Context, trans Trans) (FilterId, error) {
	var out FilterId
	err := trans.Call(ctx, &out, "eth_newPendingTransactionFilter")
	return out, errors.Wrap(err, `error in "eth_newPendingTransactionFilter"`)
}

/*
Version of the "eth_getFilterChanges" RPC method for block and pending
transaction filters, which report hashes.
*/
func EthGetFilterChangesHashes(ctx context.Context, trans Trans, id FilterId) ([]Hash, error) {
	var out []Hash
	err := trans.Call(ctx, &out, "eth_getFilterChanges", id)
	return out, errors.Wrap(err, `error in "eth_getFilterChanges"`)
}

// Version of the "eth_getFilterChanges" RPC method for log filters.
func EthGetFilterChangesLogs(ctx context.Context, trans Trans, id FilterId) ([]LogEntry, error) {
	var out []LogEntry
	err := trans.Call(ctx, &out, "eth_getFilterChanges", id)
	return out, errors.Wrap(err, `error in "eth_getFilterChanges"`)
}

// Strongly-typed version of the "eth_getFilterLogs" RPC method: every log
// matching the filter, not only new ones.
func EthGetFilterLogs(ctx context.Context, trans Trans, id FilterId) ([]LogEntry, error) {
	var out []LogEntry
	err := trans.Call(ctx, &out, "eth_getFilterLogs", id)
	return out, errors.Wrap(err, `error in "eth_getFilterLogs"`)
}

// Strongly-typed version of the "eth_uninstallFilter" RPC method.
func EthUninstallFilter(ctx context.Context, trans Trans, id FilterId) (bool, error) {
	var out bool
	err := trans.Call(ctx, &out, "eth_uninstallFilter", id)
	return out, errors.Wrap(err, `error in "eth_uninstallFilter"`)
}

/*
Installs a block filter and polls it at the given interval, sending the hash
of every new block over the provided channel. Blocks until the context is
canceled or a poll fails, then uninstalls the filter and closes the channel.
A zero interval defaults to one second.
*/
func PollBlocks(ctx context.Context, trans Trans, interval time.Duration, out chan<- Hash) error {
	defer close(out)

	id, err := EthNewBlockFilter(ctx, trans)
	if err != nil {
		return err
	}
	return pollBlockFilter(ctx, trans, id, interval, out)
}

// Polls an installed block filter until the context ends or a poll fails,
// then uninstalls it. Doesn't close `out`.
func pollBlockFilter(ctx context.Context, trans Trans, id FilterId, interval time.Duration, out chan<- Hash) error {
	defer uninstallQuietly(ctx, trans, id)

	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case <-ticker.C:
		}

		hashes, err := EthGetFilterChangesHashes(ctx, trans, id)
		if err != nil {
			return err
		}
		for _, hash := range hashes {
			select {
			case out <- hash:
			case <-ctx.Done():
				return errors.WithStack(ctx.Err())
			}
		}
	}
}

func uninstallQuietly(ctx context.Context, trans Trans, id FilterId) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unsubscribeTimeout)
	defer cancel()
	_, _ = EthUninstallFilter(ctx, trans, id)
}
