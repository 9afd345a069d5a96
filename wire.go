package web3

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
)

const jsonRpcVersion = "2.0"

// https://www.jsonrpc.org/specification#request_object
type rpcRequest struct {
	Jsonrpc string        `json:"jsonrpc"`
	Id      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// Params always encode as an array, never as "null".
func newRequest(id uint64, method string, params []interface{}) rpcRequest {
	if params == nil {
		params = []interface{}{}
	}
	return rpcRequest{
		Jsonrpc: jsonRpcVersion,
		Id:      id,
		Method:  method,
		Params:  params,
	}
}

/*
Any single incoming message: a response, or a notification. Fields stay raw
until the message is classified.

https://www.jsonrpc.org/specification#response_object
https://www.jsonrpc.org/specification#notification
*/
type rpcMessage struct {
	Jsonrpc string          `json:"jsonrpc"`
	Id      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	Result  json.RawMessage `json:"result"`
	Error   *RpcError       `json:"error"`
}

// Specialized for subscription notifications:
// https://wiki.parity.io/JSONRPC-eth_pubsub-module.html
type rpcNotificationParams struct {
	Subscription json.RawMessage `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

func (self rpcMessage) hasId() bool { return !isJsonNull(self.Id) }

func (self rpcMessage) isResponse() bool {
	return self.hasId() && self.Method == ""
}

func (self rpcMessage) isNotification() bool {
	return !self.hasId() && self.Method != "" && !isJsonNull(self.Params)
}

// Error reply without an id: the node couldn't parse the request or rejected a
// batch as a whole.
func (self rpcMessage) isRejection() bool {
	return !self.hasId() && self.Method == "" && self.Error != nil
}

func (self rpcMessage) outcome() outcome {
	// Note: `error((*RpcError)(nil)) != nil` !!!
	if self.Error != nil {
		return outcome{err: self.Error}
	}
	return outcome{result: self.Result}
}

// Result of one call, as delivered through a pending slot.
type outcome struct {
	result json.RawMessage
	err    error
}

// Decodes the result into `out`, which must be a pointer or nil.
func (self outcome) decode(out interface{}) error {
	if self.err != nil {
		return self.err
	}
	if out == nil || len(self.result) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(self.result, out), "failed to decode RPC result")
}

/*
Ids we send are unsigned integers, but servers are known to echo them back as
strings, sometimes hex-encoded. All of these forms are accepted.
*/
func parseId(input json.RawMessage) (uint64, error) {
	input = bytes.TrimSpace(input)
	if len(input) > 0 && input[0] == '"' {
		var str string
		err := json.Unmarshal(input, &str)
		if err != nil {
			return 0, errors.WithStack(err)
		}
		if len(str) > 2 && str[0] == '0' && (str[1] == 'x' || str[1] == 'X') {
			out, err := strconv.ParseUint(str[2:], 16, 64)
			return out, errors.WithStack(err)
		}
		out, err := strconv.ParseUint(str, 10, 64)
		return out, errors.WithStack(err)
	}
	out, err := strconv.ParseUint(bytesToMutableString(input), 10, 64)
	if err != nil {
		return 0, errors.Errorf("unrecognized RPC message id %s", input)
	}
	return out, nil
}

/*
Subscription ids are opaque. Nodes usually send hex strings, but some send
numbers; both are keyed by their textual form.
*/
func subscriptionKey(input json.RawMessage) (string, error) {
	input = bytes.TrimSpace(input)
	if isJsonNull(input) {
		return "", errors.New("missing subscription id")
	}
	if input[0] == '"' {
		var str string
		err := json.Unmarshal(input, &str)
		if err != nil {
			return "", errors.WithStack(err)
		}
		if str == "" {
			return "", errors.New("empty subscription id")
		}
		return str, nil
	}
	return string(input), nil
}

func isJsonNull(input []byte) bool {
	input = bytes.TrimSpace(input)
	return len(input) == 0 || bytes.Equal(input, null)
}

// Returns the first significant byte of a JSON frame, or 0.
func frameHead(frame []byte) byte {
	for _, char := range frame {
		switch char {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return char
	}
	return 0
}
