package web3

import (
	"crypto/tls"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Configures "Dial" and the transport constructors.
type Option func(*dialConf)

type dialConf struct {
	logger      *zap.Logger
	metrics     *Metrics
	tlsConfig   *tls.Config
	httpClient  *http.Client
	header      http.Header
	allowed     map[TransKind]bool
	dialTimeout time.Duration
	nextId      func() uint64
}

func newDialConf(opts []Option) *dialConf {
	conf := &dialConf{
		header:      http.Header{},
		dialTimeout: defaultDialTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(conf)
		}
	}
	if conf.logger == nil {
		conf.logger = zap.NewNop()
	}
	if conf.nextId == nil {
		conf.nextId = newIdSource()
	}
	return conf
}

// Logger for connection lifecycle events and dropped messages. Defaults to a
// no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(conf *dialConf) { conf.logger = logger }
}

func WithMetrics(metrics *Metrics) Option {
	return func(conf *dialConf) { conf.metrics = metrics }
}

// TLS settings for "https" and "wss" endpoints.
func WithTLSConfig(tlsConfig *tls.Config) Option {
	return func(conf *dialConf) { conf.tlsConfig = tlsConfig }
}

// HTTP client for the HTTP transport. Overrides "WithTLSConfig" for HTTP.
func WithHTTPClient(client *http.Client) Option {
	return func(conf *dialConf) { conf.httpClient = client }
}

// Extra header sent with every HTTP request and with the websocket handshake.
func WithHeader(key, value string) Option {
	return func(conf *dialConf) { conf.header.Add(key, value) }
}

/*
Restricts which transports "Dial" may choose. Dialing an endpoint whose
transport isn't listed fails with "ErrUnsupported". By default, every
transport is allowed.
*/
func WithTransports(kinds ...TransKind) Option {
	return func(conf *dialConf) {
		conf.allowed = map[TransKind]bool{}
		for _, kind := range kinds {
			conf.allowed[kind] = true
		}
	}
}

// Upper bound on establishing a persistent connection, in addition to the
// context passed to "Dial".
func WithDialTimeout(timeout time.Duration) Option {
	return func(conf *dialConf) { conf.dialTimeout = timeout }
}

func withIdSource(fun func() uint64) Option {
	return func(conf *dialConf) { conf.nextId = fun }
}

func (self *dialConf) allows(kind TransKind) bool {
	return self.allowed == nil || self.allowed[kind]
}
