package web3

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

/*
Minimal websocket node: answers "eth_blockNumber", and for "eth_subscribe"
replies with subscription "0x1" followed by three "newHeads" notifications in
the same write burst. "test_disconnect" drops the connection.
*/
func newWsNode(t testing.TB) (*httptest.Server, string) {
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(rew http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(rew, req, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var writeLock sync.Mutex
		write := func(msg string) error {
			writeLock.Lock()
			defer writeLock.Unlock()
			return conn.WriteMessage(websocket.TextMessage, []byte(msg))
		}

		for {
			_, frame, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var req sentRequest
			if json.Unmarshal(frame, &req) != nil {
				_ = write(`{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"parse error"}}`)
				continue
			}

			switch req.Method {
			case "eth_blockNumber":
				_ = write(fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":"0x10"}`, req.Id))
			case "eth_subscribe":
				_ = write(fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":"0x1"}`, req.Id))
				for i := 1; i <= 3; i++ {
					_ = write(fmt.Sprintf(`{"jsonrpc":"2.0","method":"eth_subscription","params":{"subscription":"0x1","result":{"number":"0x%x"}}}`, i))
				}
			case "test_disconnect":
				return
			case "eth_unsubscribe":
				_ = write(fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":true}`, req.Id))
			default:
				_ = write(fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"error":{"code":-32601,"message":"method not found"}}`, req.Id))
			}
		}
	}))
	t.Cleanup(srv.Close)

	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWsCallAndSubscribe(t *testing.T) {
	_, url := newWsNode(t)
	ctx := context.Background()

	trans, err := Dial(ctx, url)
	requireNoErr(t, err)
	defer trans.Close()

	ws, ok := trans.(*WsTrans)
	require.True(t, ok, "%T", trans)
	requireEqual(t, StateOpen, ws.State())

	num, err := EthBlockNumber(ctx, trans)
	requireNoErr(t, err)
	requireEqual(t, uint64(16), num)

	sub, err := Subscribe(ctx, trans, "eth", "newHeads")
	requireNoErr(t, err)
	requireEqual(t, "0x1", sub.Id())

	for i := 1; i <= 3; i++ {
		val, ok := receive(t, sub.Notifications())
		require.True(t, ok)

		var head BlockHead
		requireNoErr(t, json.Unmarshal(val, &head))
		requireEqual(t, fmt.Sprintf("0x%x", i), head.Number.String())
	}

	requireNoErr(t, sub.Unsubscribe(ctx))
	requireNoErr(t, sub.Unsubscribe(ctx))
}

func TestWsSubscribeNewHeads(t *testing.T) {
	_, url := newWsNode(t)

	trans, err := DialWs(context.Background(), url)
	requireNoErr(t, err)
	defer trans.Close()

	ctx, cancel := context.WithCancel(context.Background())
	heads := make(chan BlockHead)
	done := async(func() error { return SubscribeNewHeads(ctx, trans, heads) })

	for i := 1; i <= 3; i++ {
		head := <-heads
		requireEqual(t, fmt.Sprintf("0x%x", i), head.Number.String())
	}
	cancel()

	err = await(t, done)
	require.True(t, errors.Is(err, context.Canceled), "%+v", err)

	// Channel is closed on return.
	_, ok := <-heads
	require.False(t, ok)
}

func TestWsServerGone(t *testing.T) {
	_, url := newWsNode(t)

	trans, err := DialWs(context.Background(), url)
	requireNoErr(t, err)
	defer trans.Close()

	err = trans.Call(context.Background(), nil, "test_disconnect")
	require.True(t, errors.Is(err, ErrClosed), "%+v", err)
	<-trans.Done()

	err = trans.Call(context.Background(), nil, "eth_blockNumber")
	require.True(t, errors.Is(err, ErrClosed), "%+v", err)
}

func TestWsConnectError(t *testing.T) {
	srv, url := newWsNode(t)
	srv.Close()

	_, err := Dial(context.Background(), url)
	var connErr *ConnectError
	require.True(t, errors.As(err, &connErr), "%+v", err)
	requireEqual(t, url, connErr.Url)
}

func TestWsHandshakeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rew http.ResponseWriter, _ *http.Request) {
		rew.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := DialWs(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"))
	var connErr *ConnectError
	require.True(t, errors.As(err, &connErr), "%+v", err)
	require.True(t, errors.Is(err, websocket.ErrBadHandshake), "%+v", err)
}
