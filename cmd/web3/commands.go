package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/purelabio/web3"
	"github.com/spf13/cobra"
)

var callCmd = &cobra.Command{
	Use:   "call METHOD [PARAM...]",
	Short: "Invoke one RPC method and print its result",
	Long: `Invoke one RPC method and print its result.

Each param is parsed as JSON if possible, and passed as a string otherwise:

	web3 call eth_getBlockByNumber latest false`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		trans, err := dial(ctx)
		if err != nil {
			return err
		}
		defer trans.Close()

		var out json.RawMessage
		err = trans.Call(ctx, &out, args[0], parseParams(args[1:])...)
		if err != nil {
			return err
		}
		return printValue(stdout(), out)
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch FILE",
	Short: "Send a JSON array of {method, params} as one batch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := os.ReadFile(args[0])
		if err != nil {
			return errors.WithStack(err)
		}

		var reqs []struct {
			Method string        `json:"method"`
			Params []interface{} `json:"params"`
		}
		err = json.Unmarshal(input, &reqs)
		if err != nil {
			return errors.Wrapf(err, "failed to decode %q", args[0])
		}

		ctx, cancel := commandContext(cmd)
		defer cancel()

		trans, err := dial(ctx)
		if err != nil {
			return err
		}
		defer trans.Close()

		results := make([]json.RawMessage, len(reqs))
		batch := make([]web3.BatchElem, len(reqs))
		for i, req := range reqs {
			batch[i] = web3.BatchElem{Method: req.Method, Params: req.Params, Result: &results[i]}
		}

		err = trans.CallBatch(ctx, batch)
		if err != nil {
			return err
		}

		type entry struct {
			Method string          `json:"method"`
			Result json.RawMessage `json:"result,omitempty"`
			Error  string          `json:"error,omitempty"`
		}
		entries := make([]entry, len(batch))
		for i, elem := range batch {
			entries[i] = entry{Method: elem.Method, Result: results[i]}
			if elem.Error != nil {
				entries[i].Error = elem.Error.Error()
			}
		}

		out, err := json.Marshal(entries)
		if err != nil {
			return errors.WithStack(err)
		}
		return printValue(stdout(), out)
	},
}

var blockNumberCmd = &cobra.Command{
	Use:   "block-number",
	Short: "Print the number of the latest block",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		trans, err := dial(ctx)
		if err != nil {
			return err
		}
		defer trans.Close()

		num, err := web3.EthBlockNumber(ctx, trans)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout(), num)
		return errors.WithStack(err)
	},
}

var subscribeCmd = &cobra.Command{
	Use:   "subscribe KIND [PARAM...]",
	Short: "Print notifications of an eth_subscribe stream until interrupted",
	Long: `Print notifications of an eth_subscribe stream until interrupted.
Requires a websocket or IPC endpoint. Kinds include newHeads, logs,
newPendingTransactions and syncing:

	web3 subscribe logs '{"address":"0x..."}'`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// The timeout applies to dialing and subscribing, not to the stream.
		dialCtx, cancel := commandContext(cmd)
		defer cancel()

		trans, err := dial(dialCtx)
		if err != nil {
			return err
		}
		defer trans.Close()

		sub, err := web3.Subscribe(dialCtx, trans, "eth", parseParams(args)...)
		if err != nil {
			return err
		}
		logger.Info("subscribed")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		for {
			select {
			case <-ctx.Done():
				unsubCtx, cancel := commandContext(cmd)
				defer cancel()
				return sub.Unsubscribe(unsubCtx)

			case val, ok := <-sub.Notifications():
				if !ok {
					return errors.Wrap(web3.ErrClosed, "subscription ended")
				}
				err := printValue(stdout(), val)
				if err != nil {
					return err
				}
			}
		}
	},
}

func parseParams(args []string) []interface{} {
	out := make([]interface{}, len(args))
	for i, arg := range args {
		var val json.RawMessage
		if json.Unmarshal([]byte(arg), &val) == nil {
			out[i] = val
		} else {
			out[i] = arg
		}
	}
	return out
}
