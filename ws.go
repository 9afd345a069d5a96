package web3

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

/*
Persistent websocket transport. Supports concurrent RPC calls, batches, and
subscriptions over a single connection.

Does NOT reconnect. When the connection drops, pending calls fail with
"ErrClosed", subscription streams end, and ".Done()" becomes closed; dial a
new transport to continue.
*/
type WsTrans struct {
	*duplex
	Url string
}

// Attempts to establish a websocket connection to the RPC node at the given
// URL. Waits until the connection is established.
func DialWs(ctx context.Context, url string, opts ...Option) (*WsTrans, error) {
	return dialWs(ctx, url, newDialConf(opts))
}

func dialWs(ctx context.Context, url string, conf *dialConf) (*WsTrans, error) {
	self := &WsTrans{
		duplex: newDuplex(TransWs, url, conf),
		Url:    url,
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: conf.dialTimeout,
		TLSClientConfig:  conf.tlsConfig,
	}

	conn, res, err := dialer.DialContext(ctx, url, conf.header)
	if res != nil && res.Body != nil {
		res.Body.Close()
	}
	if err != nil {
		err = &ConnectError{Url: url, Err: err}
		self.fail(err)
		return nil, err
	}

	self.open(&wsConn{conn: conn})
	return self, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (self *wsConn) readFrame() ([]byte, error) {
	_, frame, err := self.conn.ReadMessage()
	return frame, err
}

func (self *wsConn) writeFrame(ctx context.Context, frame []byte) error {
	deadline, _ := ctx.Deadline()
	err := self.conn.SetWriteDeadline(deadline)
	if err != nil {
		return err
	}
	return self.conn.WriteMessage(websocket.TextMessage, frame)
}

// Safe to call concurrently with reads and writes.
func (self *wsConn) close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = self.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsCloseTimeout))
	return self.conn.Close()
}
