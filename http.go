package web3

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

/*
Stateless HTTP transport: one POST per call or batch, one reply per POST.
Doesn't support subscriptions and never retries.
*/
type HttpTrans struct {
	Url string

	client  *http.Client
	header  http.Header
	log     *zap.Logger
	metrics *Metrics
	nextId  func() uint64
}

// Creates an HTTP transport. No connection is made until the first call.
func NewHttpTrans(url string, opts ...Option) *HttpTrans {
	return newHttpTrans(url, newDialConf(opts))
}

func newHttpTrans(url string, conf *dialConf) *HttpTrans {
	client := conf.httpClient
	if client == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if conf.tlsConfig != nil {
			transport.TLSClientConfig = conf.tlsConfig
		}
		client = &http.Client{Transport: transport}
	}

	return &HttpTrans{
		Url:     url,
		client:  client,
		header:  conf.header,
		log:     conf.logger.With(zap.String("transport", string(TransHttp)), zap.String("url", url)),
		metrics: conf.metrics,
		nextId:  conf.nextId,
	}
}

// Makes an RPC call.
func (self *HttpTrans) Call(ctx context.Context, out interface{}, method string, params ...interface{}) error {
	err := self.call(ctx, out, method, params)
	self.metrics.call(TransHttp, err)
	return err
}

func (self *HttpTrans) call(ctx context.Context, out interface{}, method string, params []interface{}) error {
	id := self.nextId()
	frame, err := json.Marshal(newRequest(id, method, params))
	if err != nil {
		return errors.Wrapf(err, "failed to encode RPC request %q", method)
	}

	body, err := self.post(ctx, frame)
	if err != nil {
		return err
	}

	var msg rpcMessage
	err = json.Unmarshal(body, &msg)
	if err != nil {
		return malformedReply(body, err.Error())
	}

	// Errors about the request as a whole, such as parse errors, may come
	// without an id.
	if msg.isRejection() {
		return msg.Error
	}
	if !msg.isResponse() {
		return malformedReply(body, "not a response")
	}

	got, err := parseId(msg.Id)
	if err != nil {
		return malformedReply(body, err.Error())
	}
	if got != id {
		return malformedReply(body, "response id doesn't match request id")
	}

	return msg.outcome().decode(out)
}

/*
Sends the batch as one JSON array in one POST. Each element is resolved by the
id of its response; elements without a response in the reply get
"ErrMissingBatchResponse".
*/
func (self *HttpTrans) CallBatch(ctx context.Context, batch []BatchElem) error {
	if len(batch) == 0 {
		return nil
	}

	table := newPendingTable()
	slots, frame, err := prepareBatch(table, self.nextId, batch)
	if err != nil {
		return failBatch(batch, err)
	}

	body, err := self.post(ctx, frame)
	if err != nil {
		return failBatch(batch, err)
	}

	switch frameHead(body) {
	case '[':
		var msgs []rpcMessage
		err := json.Unmarshal(body, &msgs)
		if err != nil {
			return failBatch(batch, malformedReply(body, err.Error()))
		}
		for _, msg := range msgs {
			self.resolveBatchMember(table, msg)
		}

	case '{':
		var msg rpcMessage
		err := json.Unmarshal(body, &msg)
		if err != nil {
			return failBatch(batch, malformedReply(body, err.Error()))
		}
		// A batch rejected as a whole.
		if msg.isRejection() {
			table.drain(msg.Error)
		} else {
			self.resolveBatchMember(table, msg)
		}

	default:
		return failBatch(batch, malformedReply(body, "not a JSON object or array"))
	}

	table.finishGroup(slots[0].group)
	collectBatch(ctx, table, slots, batch)
	for i := range batch {
		self.metrics.call(TransHttp, batch[i].Error)
	}
	return nil
}

func (self *HttpTrans) resolveBatchMember(table *pendingTable, msg rpcMessage) {
	if !msg.isResponse() {
		self.log.Warn("dropping malformed batch member")
		self.metrics.malformedFrame(TransHttp)
		return
	}
	id, err := parseId(msg.Id)
	if err != nil {
		self.log.Warn("dropping batch member with malformed id", zap.Error(err))
		self.metrics.malformedFrame(TransHttp)
		return
	}
	if !table.resolve(id, msg.outcome()) {
		self.log.Warn("dropping response to unknown request", zap.Uint64("id", id))
		self.metrics.orphan(TransHttp)
	}
}

// Not implemented for the HTTP transport. Releases idle connections.
func (self *HttpTrans) Close() error {
	self.client.CloseIdleConnections()
	return nil
}

func (self *HttpTrans) post(ctx context.Context, frame []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, self.Url, bytes.NewReader(frame))
	if err != nil {
		return nil, &TransportError{Kind: KindConnect, Err: err}
	}
	for key, vals := range self.header {
		req.Header[key] = vals
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	self.log.Debug("sending request", zap.ByteString("frame", frame))

	res, err := self.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.WithStack(ctx.Err())
		}
		return nil, &TransportError{Kind: KindConnect, Err: err}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.WithStack(ctx.Err())
		}
		return nil, &TransportError{Kind: KindRead, Err: err}
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &TransportError{Kind: KindStatus, Status: res.StatusCode, Body: body}
	}
	return body, nil
}

func malformedReply(body []byte, reason string) error {
	return &TransportError{Kind: KindMalformed, Err: &ProtocolError{Reason: reason, Frame: body}}
}
