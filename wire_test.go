package web3

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRequestParamsAlwaysArray(t *testing.T) {
	frame, err := json.Marshal(newRequest(1, "eth_blockNumber", nil))
	requireNoErr(t, err)
	requireEqual(t, `{"jsonrpc":"2.0","id":1,"method":"eth_blockNumber","params":[]}`, string(frame))

	frame, err = json.Marshal(newRequest(2, "eth_getBalance", []interface{}{"0x01", BlockNumberLatest}))
	requireNoErr(t, err)
	requireEqual(t, `{"jsonrpc":"2.0","id":2,"method":"eth_getBalance","params":["0x01","latest"]}`, string(frame))
}

func TestParseId(t *testing.T) {
	for _, input := range []string{`7`, ` 7 `, `"7"`, `"0x7"`, `"0X07"`} {
		id, err := parseId(json.RawMessage(input))
		requireNoErr(t, err)
		requireEqual(t, uint64(7), id)
	}

	for _, input := range []string{`-1`, `1.5`, `"seven"`, `{}`, `"0xzz"`} {
		_, err := parseId(json.RawMessage(input))
		require.Error(t, err, input)
	}
}

func TestSubscriptionKey(t *testing.T) {
	key, err := subscriptionKey(json.RawMessage(`"0xcd0c3e8af590364c09d0fa6a1210faf5"`))
	requireNoErr(t, err)
	requireEqual(t, "0xcd0c3e8af590364c09d0fa6a1210faf5", key)

	key, err = subscriptionKey(json.RawMessage(`12`))
	requireNoErr(t, err)
	requireEqual(t, "12", key)

	for _, input := range []string{``, `null`, `""`} {
		_, err := subscriptionKey(json.RawMessage(input))
		require.Error(t, err, input)
	}
}

func TestRpcMessageClassification(t *testing.T) {
	decode := func(input string) rpcMessage {
		var out rpcMessage
		requireNoErr(t, json.Unmarshal([]byte(input), &out))
		return out
	}

	msg := decode(`{"jsonrpc":"2.0","id":1,"result":"0x1"}`)
	require.True(t, msg.isResponse())
	require.False(t, msg.isNotification())

	msg = decode(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"method not found"}}`)
	require.True(t, msg.isResponse())
	val := msg.outcome()
	require.Error(t, val.err)
	requireEqual(t, "RPC error -32601: method not found", val.err.Error())

	msg = decode(`{"jsonrpc":"2.0","method":"eth_subscription","params":{"subscription":"0x1","result":{}}}`)
	require.False(t, msg.isResponse())
	require.True(t, msg.isNotification())

	msg = decode(`{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"parse error"}}`)
	require.False(t, msg.isResponse())
	require.False(t, msg.isNotification())

	msg = decode(`{"jsonrpc":"2.0"}`)
	require.False(t, msg.isResponse())
	require.False(t, msg.isNotification())
}

func TestOutcomeDecode(t *testing.T) {
	var out HexUint64
	requireNoErr(t, outcome{result: json.RawMessage(`"0x10"`)}.decode(&out))
	requireEqual(t, HexUint64(16), out)

	// Discarded result.
	requireNoErr(t, outcome{result: json.RawMessage(`"0x10"`)}.decode(nil))

	err := outcome{result: json.RawMessage(`{}`)}.decode(&out)
	require.Error(t, err)
}

func TestFrameHead(t *testing.T) {
	requireEqual(t, byte('['), frameHead([]byte(" \n\t[1]")))
	requireEqual(t, byte('{'), frameHead([]byte("{}")))
	requireEqual(t, byte(0), frameHead([]byte("  ")))
}

func TestRpcErrorData(t *testing.T) {
	var err RpcError
	requireNoErr(t, json.Unmarshal([]byte(`{"code":3,"message":"execution reverted","data":"0x08c379a0"}`), &err))
	requireEqual(t, `RPC error 3: execution reverted Additional details: "0x08c379a0"`, err.Error())
}

func BenchmarkParseId(b *testing.B) {
	input := json.RawMessage(`"0x1f2e3d"`)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, err := parseId(input)
		if err != nil {
			b.Fatalf("%+v", err)
		}
	}
}
