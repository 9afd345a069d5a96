//go:build !windows

package web3

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"

	"github.com/pkg/errors"
)

/*
Persistent transport over a Unix domain socket, as exposed by geth
("geth.ipc") and Parity ("jsonrpc.ipc"). Frames are consecutive JSON values on
the stream, with or without separators. A value that fails to parse is skipped
up to the end of its line. Same semantics as WsTrans: calls,
batches and subscriptions over one connection, no reconnect.
*/
type IpcTrans struct {
	*duplex
	Path string
}

// Connects to the node's IPC socket at the given filesystem path.
func DialIpc(ctx context.Context, path string, opts ...Option) (*IpcTrans, error) {
	return dialIpc(ctx, path, newDialConf(opts))
}

func dialIpc(ctx context.Context, path string, conf *dialConf) (*IpcTrans, error) {
	self := &IpcTrans{
		duplex: newDuplex(TransIpc, path, conf),
		Path:   path,
	}

	dialer := net.Dialer{Timeout: conf.dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		err = &ConnectError{Url: path, Err: err}
		self.fail(err)
		return nil, err
	}

	self.open(newIpcConn(conn))
	return self, nil
}

func dialIpcTrans(ctx context.Context, path string, conf *dialConf) (Trans, error) {
	return dialIpc(ctx, path, conf)
}

type ipcConn struct {
	conn net.Conn

	// Source of the current decoder.
	src io.Reader
	dec *json.Decoder
}

func newIpcConn(conn net.Conn) *ipcConn {
	src := bufio.NewReader(conn)
	return &ipcConn{conn: conn, src: src, dec: json.NewDecoder(src)}
}

/*
A syntax error leaves the decoder unusable. Nodes write one value per line, so
the rest of the line is dropped and decoding resumes after it. The dropped line
is returned as the frame, for the receive loop to report as malformed. Any
other read error ends the connection.
*/
func (self *ipcConn) readFrame() ([]byte, error) {
	var frame json.RawMessage
	err := self.dec.Decode(&frame)
	if err == nil {
		return frame, nil
	}

	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return nil, err
	}
	return self.skipLine()
}

func (self *ipcConn) skipLine() ([]byte, error) {
	buffered, err := io.ReadAll(self.dec.Buffered())
	if err != nil {
		return nil, err
	}
	line := bytes.TrimLeft(buffered, " \t\r\n")

	index := bytes.IndexByte(line, '\n')
	if index >= 0 {
		self.resume(line[index+1:])
		return line[:index], nil
	}

	var char [1]byte
	for {
		_, err := io.ReadFull(self.src, char[:])
		if err != nil {
			return nil, err
		}
		if char[0] == '\n' {
			break
		}
		line = append(line, char[0])
	}
	self.resume(nil)
	return line, nil
}

// Starts a new decoder reading `rest`, then the remaining stream.
func (self *ipcConn) resume(rest []byte) {
	if len(rest) > 0 {
		self.src = io.MultiReader(bytes.NewReader(rest), self.src)
	}
	self.dec = json.NewDecoder(self.src)
}

func (self *ipcConn) writeFrame(ctx context.Context, frame []byte) error {
	deadline, _ := ctx.Deadline()
	err := self.conn.SetWriteDeadline(deadline)
	if err != nil {
		return err
	}
	_, err = self.conn.Write(frame)
	return err
}

func (self *ipcConn) close() error { return self.conn.Close() }
