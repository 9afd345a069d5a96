package web3

import (
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
)

var (
	// Returned, possibly wrapped, by any operation on a transport whose
	// connection has ended. Test with "errors.Is".
	ErrClosed = errors.New("RPC connection closed")

	// Returned when the transport lacks a capability, such as subscriptions over
	// HTTP or IPC on Windows.
	ErrUnsupported = errors.New("operation not supported by this RPC transport")

	// Outcome of a batch element whose response never arrived: the server's
	// batch reply omitted it, or the caller's deadline passed first.
	ErrMissingBatchResponse = errors.New("missing response for batch element")

	// Indicates that a request id was already pending. This can only happen if
	// the id allocator is broken, and is reported rather than silently
	// overwriting the earlier call.
	ErrDuplicateId = errors.New("duplicate request id")
)

/*
Returned when a persistent connection can't be established. Transports never
retry on their own; the caller may dial again.
*/
type ConnectError struct {
	Url string
	Err error
}

// Implements "error".
func (self *ConnectError) Error() string {
	return "failed to connect to " + self.Url + ": " + errString(self.Err)
}

// Allows "errors.Is" and "errors.As" to see the cause.
func (self *ConnectError) Unwrap() error { return self.Err }

// Classifies a TransportError.
type TransportErrorKind string

const (
	KindConnect   TransportErrorKind = "connect"
	KindWrite     TransportErrorKind = "write"
	KindRead      TransportErrorKind = "read"
	KindMalformed TransportErrorKind = "malformed"
	KindStatus    TransportErrorKind = "status"
	KindClosed    TransportErrorKind = "closed"
)

/*
Failure of the medium rather than of the remote method. For HTTP status
failures, ".Status" and ".Body" hold the response. Errors of kind "KindClosed"
match "ErrClosed" via "errors.Is".
*/
type TransportError struct {
	Kind   TransportErrorKind
	Status int
	Body   []byte
	Err    error
}

// Implements "error".
func (self *TransportError) Error() string {
	switch self.Kind {
	case KindStatus:
		return "RPC transport error: unexpected HTTP status " + strconv.Itoa(self.Status) + ": " + string(self.Body)
	case KindClosed:
		if self.Err == nil {
			return ErrClosed.Error()
		}
		return ErrClosed.Error() + ": " + self.Err.Error()
	}
	return "RPC transport error (" + string(self.Kind) + "): " + errString(self.Err)
}

func (self *TransportError) Unwrap() error { return self.Err }

func (self *TransportError) Is(target error) bool {
	return target == ErrClosed && self.Kind == KindClosed
}

/*
Represents an error that arrives over JSON RPC. See
https://www.jsonrpc.org/specification#error_object for details. Always returned
as "*RpcError"; use "errors.As" to inspect.
*/
type RpcError struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Implements "error". Includes the RPC error details if possible.
func (self *RpcError) Error() string {
	str := "RPC error " + strconv.FormatInt(self.Code, 10) + ": " + self.Message
	if len(self.Data) > 0 {
		str += " Additional details: " + string(self.Data)
	}
	return str
}

// A frame that can't be interpreted as JSON-RPC.
type ProtocolError struct {
	Reason string
	Frame  []byte
}

// Implements "error".
func (self *ProtocolError) Error() string {
	return "malformed RPC message: " + self.Reason
}

func isRpcError(err error) bool {
	var rpcErr *RpcError
	return errors.As(err, &rpcErr)
}

func closedError(cause error) error {
	return &TransportError{Kind: KindClosed, Err: cause}
}

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
