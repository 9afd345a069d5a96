package web3

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// Node stub: hands each POST body to `reply` and writes back what it returns.
func newHttpNode(t testing.TB, reply func(body []byte) string) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(rew http.ResponseWriter, req *http.Request) {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			rew.WriteHeader(http.StatusBadRequest)
			return
		}
		rew.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(rew, reply(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// Replies to single requests by method name.
func methodReplies(results map[string]string) func([]byte) string {
	return func(body []byte) string {
		var req sentRequest
		if json.Unmarshal(body, &req) != nil {
			return `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"parse error"}}`
		}
		result, ok := results[req.Method]
		if !ok {
			return fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"error":{"code":-32601,"message":"method not found"}}`, req.Id)
		}
		return fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":%s}`, req.Id, result)
	}
}

func TestHttpCall(t *testing.T) {
	srv := newHttpNode(t, methodReplies(map[string]string{
		"eth_blockNumber": `"0x10"`,
	}))
	trans := NewHttpTrans(srv.URL)
	defer trans.Close()

	num, err := EthBlockNumber(context.Background(), trans)
	requireNoErr(t, err)
	requireEqual(t, uint64(16), num)
}

func TestHttpCallRpcError(t *testing.T) {
	metrics := NewMetrics(nil)
	srv := newHttpNode(t, methodReplies(nil))
	trans := NewHttpTrans(srv.URL, WithMetrics(metrics))

	err := trans.Call(context.Background(), nil, "eth_nope")
	var rpcErr *RpcError
	require.True(t, errors.As(err, &rpcErr), "%+v", err)
	requireEqual(t, int64(-32601), rpcErr.Code)
	requireEqual(t, "method not found", rpcErr.Message)

	// Errors without an id refer to the request as a whole.
	srv = newHttpNode(t, func([]byte) string {
		return `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"parse error"}}`
	})
	err = NewHttpTrans(srv.URL).Call(context.Background(), nil, "eth_blockNumber")
	require.True(t, errors.As(err, &rpcErr), "%+v", err)
	requireEqual(t, int64(-32700), rpcErr.Code)
}

func TestHttpStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rew http.ResponseWriter, _ *http.Request) {
		rew.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(rew, "node is syncing")
	}))
	defer srv.Close()

	err := NewHttpTrans(srv.URL).Call(context.Background(), nil, "eth_blockNumber")
	var transErr *TransportError
	require.True(t, errors.As(err, &transErr), "%+v", err)
	requireEqual(t, KindStatus, transErr.Kind)
	requireEqual(t, http.StatusServiceUnavailable, transErr.Status)
	requireEqual(t, "node is syncing", string(transErr.Body))
}

func TestHttpMalformedReply(t *testing.T) {
	for _, body := range []string{``, `not json`, `{"jsonrpc":"2.0","id":12345,"result":1}`, `{"jsonrpc":"2.0"}`} {
		srv := newHttpNode(t, func([]byte) string { return body })

		err := NewHttpTrans(srv.URL).Call(context.Background(), nil, "eth_blockNumber")
		var transErr *TransportError
		require.True(t, errors.As(err, &transErr), "body %q: %+v", body, err)
		requireEqual(t, KindMalformed, transErr.Kind)

		var protoErr *ProtocolError
		require.True(t, errors.As(err, &protoErr))
	}
}

func TestHttpConnectError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewHttpTrans(url).Call(context.Background(), nil, "eth_blockNumber")
	var transErr *TransportError
	require.True(t, errors.As(err, &transErr), "%+v", err)
	requireEqual(t, KindConnect, transErr.Kind)
}

func TestHttpCanceled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := NewHttpTrans(srv.URL).Call(ctx, nil, "eth_blockNumber")
	require.True(t, errors.Is(err, context.DeadlineExceeded), "%+v", err)
}

func TestHttpHeaders(t *testing.T) {
	headers := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(rew http.ResponseWriter, req *http.Request) {
		headers <- req.Header.Clone()
		var body sentRequest
		_ = json.NewDecoder(req.Body).Decode(&body)
		_, _ = fmt.Fprintf(rew, `{"jsonrpc":"2.0","id":%d,"result":true}`, body.Id)
	}))
	defer srv.Close()

	trans := NewHttpTrans(srv.URL, WithHeader("Authorization", "Bearer secret"))
	requireNoErr(t, trans.Call(context.Background(), nil, "net_listening"))

	header := <-headers
	requireEqual(t, "Bearer secret", header.Get("Authorization"))
	requireEqual(t, "application/json", header.Get("Content-Type"))
}

func TestHttpSubscribeUnsupported(t *testing.T) {
	trans := NewHttpTrans("http://127.0.0.1:1")

	_, err := Subscribe(context.Background(), trans, "eth", "newHeads")
	require.True(t, errors.Is(err, ErrUnsupported), "%+v", err)

	err = SubscribeNewHeads(context.Background(), trans, make(chan BlockHead))
	require.True(t, errors.Is(err, ErrUnsupported), "%+v", err)
}
