package web3

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

/*
Replies to a batch in reverse order, omitting "eth_missing" and answering
"eth_fail" with an error. Ids in the reply are hex strings.
*/
func reverseBatchReply(reqs []sentRequest) string {
	var members []string
	for i := len(reqs) - 1; i >= 0; i-- {
		req := reqs[i]
		switch req.Method {
		case "eth_missing":
		case "eth_fail":
			members = append(members, fmt.Sprintf(`{"jsonrpc":"2.0","id":"0x%x","error":{"code":-32000,"message":"failed"}}`, req.Id))
		default:
			members = append(members, fmt.Sprintf(`{"jsonrpc":"2.0","id":"0x%x","result":%q}`, req.Id, req.Method))
		}
	}
	return "[" + strings.Join(members, ",") + "]"
}

func testBatch() ([]BatchElem, []string) {
	results := make([]string, 4)
	batch := []BatchElem{
		{Method: "eth_first", Result: &results[0]},
		{Method: "eth_missing", Result: &results[1]},
		{Method: "eth_fail", Result: &results[2]},
		{Method: "eth_last", Params: []interface{}{1, "two"}, Result: &results[3]},
	}
	return batch, results
}

func requireTestBatch(t *testing.T, batch []BatchElem, results []string) {
	t.Helper()

	requireNoErr(t, batch[0].Error)
	requireEqual(t, "eth_first", results[0])

	require.True(t, errors.Is(batch[1].Error, ErrMissingBatchResponse), "%+v", batch[1].Error)
	requireEqual(t, "", results[1])

	require.True(t, isRpcError(batch[2].Error), "%+v", batch[2].Error)

	requireNoErr(t, batch[3].Error)
	requireEqual(t, "eth_last", results[3])
}

func TestHttpBatch(t *testing.T) {
	srv := newHttpNode(t, func(body []byte) string {
		var reqs []sentRequest
		if json.Unmarshal(body, &reqs) != nil {
			return `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"parse error"}}`
		}
		return reverseBatchReply(reqs)
	})
	trans := NewHttpTrans(srv.URL)

	batch, results := testBatch()
	requireNoErr(t, CallBatch(context.Background(), trans, batch))
	requireTestBatch(t, batch, results)
}

func TestHttpBatchRejectedAsWhole(t *testing.T) {
	srv := newHttpNode(t, func([]byte) string {
		return `{"jsonrpc":"2.0","id":null,"error":{"code":-32600,"message":"batch too large"}}`
	})
	trans := NewHttpTrans(srv.URL)

	batch, _ := testBatch()
	requireNoErr(t, trans.CallBatch(context.Background(), batch))
	for _, elem := range batch {
		var rpcErr *RpcError
		require.True(t, errors.As(elem.Error, &rpcErr), "%+v", elem.Error)
		requireEqual(t, int64(-32600), rpcErr.Code)
	}
}

func TestHttpBatchTransportFailure(t *testing.T) {
	srv := newHttpNode(t, func([]byte) string { return `oops` })
	trans := NewHttpTrans(srv.URL)

	batch, _ := testBatch()
	err := trans.CallBatch(context.Background(), batch)
	require.Error(t, err)
	for _, elem := range batch {
		requireEqual(t, err, elem.Error)
	}
}

func TestEmptyBatch(t *testing.T) {
	requireNoErr(t, NewHttpTrans("http://127.0.0.1:1").CallBatch(context.Background(), nil))

	trans, conn := newTestDuplex(t)
	requireNoErr(t, trans.CallBatch(context.Background(), nil))
	conn.requireSilent(t)
}

func TestDuplexBatch(t *testing.T) {
	trans, conn := newTestDuplex(t)

	batch, results := testBatch()
	done := async(func() error { return trans.CallBatch(context.Background(), batch) })

	reqs := conn.nextBatch(t)
	requireEqual(t, 4, len(reqs))
	requireEqual(t, []json.RawMessage{json.RawMessage(`1`), json.RawMessage(`"two"`)}, reqs[3].Params)
	requireEqual(t, []json.RawMessage{}, reqs[0].Params)

	conn.reply(reverseBatchReply(reqs))
	requireNoErr(t, await(t, done))
	requireTestBatch(t, batch, results)
	requireEqual(t, 0, trans.pending.size())
}

func TestDuplexBatchDeadline(t *testing.T) {
	trans, conn := newTestDuplex(t)

	results := make([]string, 2)
	batch := []BatchElem{
		{Method: "eth_answered", Result: &results[0]},
		{Method: "eth_slow", Result: &results[1]},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	done := async(func() error { return trans.CallBatch(ctx, batch) })

	reqs := conn.nextBatch(t)

	// Individual responses, as some nodes send them, for only one member.
	conn.reply(fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":"ok"}`, reqs[0].Id))
	requireNoErr(t, await(t, done))

	requireNoErr(t, batch[0].Error)
	requireEqual(t, "ok", results[0])
	require.True(t, errors.Is(batch[1].Error, ErrMissingBatchResponse), "%+v", batch[1].Error)
	requireEqual(t, 0, trans.pending.size())
}

func TestDuplexBatchCanceled(t *testing.T) {
	trans, conn := newTestDuplex(t)

	batch := []BatchElem{{Method: "eth_a"}, {Method: "eth_b"}}
	ctx, cancel := context.WithCancel(context.Background())
	done := async(func() error { return trans.CallBatch(ctx, batch) })

	conn.nextBatch(t)
	cancel()
	requireNoErr(t, await(t, done))

	for _, elem := range batch {
		require.True(t, errors.Is(elem.Error, context.Canceled), "%+v", elem.Error)
	}
	requireEqual(t, 0, trans.pending.size())
	requireEqual(t, StateOpen, trans.State())
}

func TestDuplexBatchRejectedAsWhole(t *testing.T) {
	trans, conn := newTestDuplex(t)

	batch := []BatchElem{{Method: "eth_a"}, {Method: "eth_b"}}
	done := async(func() error { return trans.CallBatch(context.Background(), batch) })

	conn.nextBatch(t)
	conn.reply(`{"jsonrpc":"2.0","id":null,"error":{"code":-32600,"message":"batch too large"}}`)
	requireNoErr(t, await(t, done))

	for _, elem := range batch {
		var rpcErr *RpcError
		require.True(t, errors.As(elem.Error, &rpcErr), "%+v", elem.Error)
		requireEqual(t, int64(-32600), rpcErr.Code)
	}
	requireEqual(t, 0, trans.pending.size())
	requireEqual(t, StateOpen, trans.State())
}

func TestDuplexBatchRejectionAmbiguous(t *testing.T) {
	metrics := NewMetrics(nil)
	trans, conn := newTestDuplex(t, WithMetrics(metrics))

	first := []BatchElem{{Method: "eth_a"}}
	second := []BatchElem{{Method: "eth_b"}}
	firstDone := async(func() error { return trans.CallBatch(context.Background(), first) })
	firstReqs := conn.nextBatch(t)
	secondDone := async(func() error { return trans.CallBatch(context.Background(), second) })
	secondReqs := conn.nextBatch(t)

	// Two batches outstanding: the error can't be attributed and is dropped.
	conn.reply(`{"jsonrpc":"2.0","id":null,"error":{"code":-32600,"message":"invalid request"}}`)
	conn.reply(fmt.Sprintf(`[{"jsonrpc":"2.0","id":%d,"result":"0x1"}]`, firstReqs[0].Id))
	conn.reply(fmt.Sprintf(`[{"jsonrpc":"2.0","id":%d,"result":"0x2"}]`, secondReqs[0].Id))

	requireNoErr(t, await(t, firstDone))
	requireNoErr(t, await(t, secondDone))
	requireNoErr(t, first[0].Error)
	requireNoErr(t, second[0].Error)
	requireEqual(t, 1.0, testutil.ToFloat64(metrics.malformed.WithLabelValues("ws")))
}

func TestBatchSubmit(t *testing.T) {
	srv := newHttpNode(t, func(body []byte) string {
		var reqs []sentRequest
		requireNoErr(t, json.Unmarshal(body, &reqs))
		return fmt.Sprintf(`[{"jsonrpc":"2.0","id":%d,"result":"0x2a"},{"jsonrpc":"2.0","id":%d,"result":"0xde0b6b3a7640000"}]`,
			reqs[0].Id, reqs[1].Id)
	})

	var batch Batch
	var num HexUint64
	var balance HexInt
	requireEqual(t, 0, batch.Add(&num, "eth_blockNumber"))
	requireEqual(t, 1, batch.Add(&balance, "eth_getBalance", ZeroAddress, BlockNumberLatest))

	requireNoErr(t, batch.Submit(context.Background(), NewHttpTrans(srv.URL)))
	requireEqual(t, HexUint64(42), num)
	requireEqual(t, "0xde0b6b3a7640000", balance.String())
}

func TestBatchSubmitReportsFirstError(t *testing.T) {
	srv := newHttpNode(t, func(body []byte) string {
		var reqs []sentRequest
		requireNoErr(t, json.Unmarshal(body, &reqs))
		return reverseBatchReply(reqs)
	})

	var batch Batch
	batch.Add(nil, "eth_ok")
	batch.Add(nil, "eth_fail")

	err := batch.Submit(context.Background(), NewHttpTrans(srv.URL))
	require.True(t, isRpcError(err), "%+v", err)
	require.Contains(t, err.Error(), `"eth_fail"`)
	requireNoErr(t, batch.Elems[0].Error)
}
