package web3

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

/*
Common interface implemented by RPC transports. Obtained via "Dial" and passed
to the various RPC functions.
*/
type Trans interface {
	/**
	Makes an RPC request and decodes the result into `out`, which must be a
	pointer or nil. Returns a transport error, an "*RpcError" sent by the node,
	a decoding error, or the context's error.
	*/
	Call(ctx context.Context, out interface{}, method string, params ...interface{}) error

	/**
	Sends every element in one round trip and fills in each element's ".Result"
	or ".Error". Responses are matched by id, regardless of their order in the
	reply. Returns an error only if the batch as a whole couldn't be sent.
	*/
	CallBatch(ctx context.Context, batch []BatchElem) error

	// Releases the transport. Pending calls fail with "ErrClosed".
	Close() error
}

/*
Capability of persistent transports (WebSocket, IPC): server-pushed
subscriptions over one long-lived connection. Use the package-level
"Subscribe" to get a uniform "ErrUnsupported" from transports that lack it.
*/
type Duplex interface {
	Trans

	/**
	Invokes "<namespace>_subscribe" with the given params and returns a live
	subscription. The route for its notifications exists before this returns,
	so notifications sent right after the subscribe reply are never lost.
	*/
	Subscribe(ctx context.Context, namespace string, params ...interface{}) (*Subscription, error)

	// Closed once the connection is torn down.
	Done() <-chan struct{}

	State() ConnState
}

// Subscribes via "trans" if it's a "Duplex", otherwise fails fast with
// "ErrUnsupported".
func Subscribe(ctx context.Context, trans Trans, namespace string, params ...interface{}) (*Subscription, error) {
	duplex, ok := trans.(Duplex)
	if !ok {
		return nil, errors.Wrapf(ErrUnsupported, "%T doesn't support subscriptions", trans)
	}
	return duplex.Subscribe(ctx, namespace, params...)
}

// Identifies a transport implementation.
type TransKind string

const (
	TransHttp TransKind = "http"
	TransWs   TransKind = "ws"
	TransIpc  TransKind = "ipc"
)

type dialFunc func(ctx context.Context, target string, conf *dialConf) (Trans, error)

type dialer struct {
	kind TransKind
	dial dialFunc
}

var (
	dialersLock sync.RWMutex
	dialers     = map[string]dialer{}
)

func registerDialer(scheme string, kind TransKind, dial dialFunc) {
	dialersLock.Lock()
	defer dialersLock.Unlock()
	dialers[scheme] = dialer{kind: kind, dial: dial}
}

func init() {
	dialHttp := func(_ context.Context, target string, conf *dialConf) (Trans, error) {
		return newHttpTrans(target, conf), nil
	}
	dialWsTrans := func(ctx context.Context, target string, conf *dialConf) (Trans, error) {
		return dialWs(ctx, target, conf)
	}

	registerDialer("http", TransHttp, dialHttp)
	registerDialer("https", TransHttp, dialHttp)
	registerDialer("ws", TransWs, dialWsTrans)
	registerDialer("wss", TransWs, dialWsTrans)
	registerDialer("ipc", TransIpc, dialIpcTrans)
}

/*
Chooses the appropriate transport for the given URL or path:

	http://, https://  ->  HttpTrans
	ws://, wss://      ->  WsTrans
	ipc:///path, /path ->  IpcTrans

Persistent transports are connected before this returns; a failure to connect
is a "*ConnectError" and is not retried.
*/
func Dial(ctx context.Context, rpcPath string, opts ...Option) (Trans, error) {
	conf := newDialConf(opts)

	scheme, target, err := splitRpcPath(rpcPath)
	if err != nil {
		return nil, err
	}

	dialersLock.RLock()
	entry, ok := dialers[scheme]
	dialersLock.RUnlock()
	if !ok {
		return nil, errors.Errorf("unsupported RPC path: %v", rpcPath)
	}
	if !conf.allows(entry.kind) {
		return nil, errors.Wrapf(ErrUnsupported, "transport %q is disabled", entry.kind)
	}

	return entry.dial(ctx, target, conf)
}

func splitRpcPath(rpcPath string) (string, string, error) {
	if strings.HasPrefix(rpcPath, "/") || strings.HasPrefix(rpcPath, ".") {
		return "ipc", rpcPath, nil
	}

	rpcUrl, err := url.Parse(rpcPath)
	if err != nil {
		return "", "", errors.WithStack(err)
	}

	scheme := strings.ToLower(rpcUrl.Scheme)
	if scheme == "ipc" {
		path := rpcUrl.Path
		if rpcUrl.Host != "" {
			path = rpcUrl.Host + path
		}
		return scheme, path, nil
	}
	return scheme, rpcPath, nil
}
