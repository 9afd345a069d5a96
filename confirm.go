package web3

import (
	"context"
	"math/big"
	"time"

	"github.com/pkg/errors"
)

/*
Waits until the transaction appears in the blockchain. Useful for confirming
freshly-sent transactions. Watches new blocks via a subscription when the
transport supports it, and via a polled block filter otherwise.

TODO: implement fork detection. The current implementation may hang in case of a
chain fork.
*/
func WaitForTx(ctx context.Context, trans Trans, hash Hash) error {
	_, err := WaitForConfirmations(ctx, trans, hash, 0, 0)
	return err
}

/*
Waits until the transaction is mined and followed by at least `confirmations`
blocks, then returns its receipt. Rechecks on every new block; `interval`
applies only when blocks are watched by polling, and defaults to one second.
*/
func WaitForConfirmations(ctx context.Context, trans Trans, hash Hash, confirmations uint64, interval time.Duration) (*TxReceipt, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Watch first, so that we don't miss a block that arrives between RPC calls.
	blocks, errs, err := watchBlocks(ctx, trans, interval)
	if err != nil {
		return nil, errors.Wrap(err, "failed to watch for new blocks")
	}

	for {
		receipt, err := confirmedReceipt(ctx, trans, hash, confirmations)
		if err != nil || receipt != nil {
			return receipt, err
		}

		select {
		case <-ctx.Done():
			return nil, errors.WithStack(ctx.Err())
		case _, ok := <-blocks:
			if !ok {
				err := <-errs
				if err == nil {
					err = errors.New("block stream ended")
				}
				return nil, errors.Wrap(err, "failed to watch for new blocks")
			}
		}
	}
}

func confirmedReceipt(ctx context.Context, trans Trans, hash Hash, confirmations uint64) (*TxReceipt, error) {
	receipt, err := EthGetTxReceipt(ctx, trans, hash)
	if err != nil || receipt == nil || receipt.BlockNumber == nil {
		return nil, err
	}
	if confirmations == 0 {
		return receipt, nil
	}

	head, err := EthBlockNumber(ctx, trans)
	if err != nil {
		return nil, err
	}
	if (*big.Int)(receipt.BlockNumber).Uint64()+confirmations <= head {
		return receipt, nil
	}
	return nil, nil
}

/*
Sends a transaction via "eth_sendTransaction" and waits for the given number
of confirmations, returning the receipt.
*/
func SendTxWithConfirmation(ctx context.Context, trans Trans, msg TxMsg, confirmations uint64, interval time.Duration) (*TxReceipt, error) {
	hash, err := EthSendTx(ctx, trans, msg)
	if err != nil {
		return nil, err
	}
	return WaitForConfirmations(ctx, trans, hash, confirmations, interval)
}

// Same as "SendTxWithConfirmation", for a signed raw transaction.
func SendRawTxWithConfirmation(ctx context.Context, trans Trans, raw []byte, confirmations uint64, interval time.Duration) (*TxReceipt, error) {
	hash, err := EthSendRawTx(ctx, trans, raw)
	if err != nil {
		return nil, err
	}
	return WaitForConfirmations(ctx, trans, hash, confirmations, interval)
}

/*
Starts watching new blocks and returns once the subscription or filter exists,
so no later block is missed. Emits a tick for every new block until the
context ends or watching fails. Ticks coalesce when the reader is slow. The
ticks channel is closed first, then the final error is sent.
*/
func watchBlocks(ctx context.Context, trans Trans, interval time.Duration) (<-chan struct{}, <-chan error, error) {
	ticks := make(chan struct{}, 1)
	errs := make(chan error, 1)

	var watch func() error
	if _, ok := trans.(Duplex); ok {
		sub, err := Subscribe(ctx, trans, "eth", "newHeads")
		if err != nil {
			return nil, nil, errors.Wrap(err, `error in "eth_subscribe"`)
		}
		watch = func() error {
			heads := make(chan BlockHead)
			done := coalesce[BlockHead](heads, ticks)
			err := streamDecoded(ctx, sub, heads)
			close(heads)
			<-done
			return err
		}
	} else {
		id, err := EthNewBlockFilter(ctx, trans)
		if err != nil {
			return nil, nil, err
		}
		watch = func() error {
			hashes := make(chan Hash)
			done := coalesce[Hash](hashes, ticks)
			err := pollBlockFilter(ctx, trans, id, interval, hashes)
			close(hashes)
			<-done
			return err
		}
	}

	go func() {
		err := watch()
		close(ticks)
		errs <- err
	}()
	return ticks, errs, nil
}

func coalesce[T any](input <-chan T, ticks chan<- struct{}) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range input {
			select {
			case ticks <- struct{}{}:
			default:
			}
		}
	}()
	return done
}
