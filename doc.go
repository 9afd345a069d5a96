/*
JSON-RPC client for Ethereum nodes over HTTP, WebSocket, and IPC. Compatible
with go-ethereum, Parity/OpenEthereum, and other nodes speaking the standard
Ethereum JSON-RPC API.

Consists of one package with few dependencies. The transports share a single
request/response contract; persistent transports add subscriptions.

Transports

Connect to a node:

	trans, err := web3.Dial(ctx, "wss://some-host:8546",
		web3.WithLogger(logger),
		web3.WithMetrics(web3.NewMetrics(prometheus.DefaultRegisterer)),
	)
	defer trans.Close()

The URL scheme chooses the transport:

	http://, https://   stateless, one POST per call or batch
	ws://, wss://       persistent, multiplexed, subscriptions
	ipc:///path, /path  persistent, Unix domain socket, subscriptions

Persistent transports carry any number of concurrent calls over one
connection. Requests carry ids that increase strictly per transport; responses
are matched by id, so they may arrive in any order. Notifications are routed to
their subscriptions in arrival order, and a slow subscriber never blocks the
connection.

Transports never retry or reconnect. When a persistent connection drops, every
pending call fails with an error matching "ErrClosed" (test with "errors.Is"),
every subscription stream ends, and so do all later calls. Dial again to
continue.

Calls

Call RPC methods through the strongly-typed functions:

	address, err := web3.EthCoinbase(ctx, trans)
	number, err := web3.EthBlockNumber(ctx, trans)

Or directly:

	var out web3.HexUint64
	err := trans.Call(ctx, &out, "eth_blockNumber")

Errors sent by the node are "*RpcError"; failures of the medium are
"*TransportError" with a kind; a failure to dial is "*ConnectError".

Batches

Several calls can share one round trip:

	var batch web3.Batch
	var num web3.HexUint64
	var version string
	batch.Add(&num, "eth_blockNumber")
	batch.Add(&version, "web3_clientVersion")
	err := batch.Submit(ctx, trans)

Each element gets its own outcome. An element the node didn't answer fails with
"ErrMissingBatchResponse"; the others are unaffected.

Subscriptions

	heads := make(chan web3.BlockHead)
	go func() {
		for head := range heads {
			fmt.Println(head.Number)
		}
	}()
	err := web3.SubscribeNewHeads(ctx, trans, heads)

For raw access, use "Subscribe", which returns a "*Subscription". Over HTTP,
subscribing fails with "ErrUnsupported"; use the polling filters instead, such
as "PollBlocks".

Contracts

ABI encoding and transaction signing are out of scope. "CallContract" invokes a
function by signature with pre-encoded arguments, and "FunctionSelector",
"EventTopic" and "Keccak256" cover the hashing needed to build calldata and log
filters.

Cancelation

All network operations accept a context.Context as the first argument. Use
it for cancelation and deadlines:

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	address, err := web3.EthCoinbase(ctx, trans)

A canceled call frees its place in the transport; a response arriving later is
logged and dropped.

Configuration

The "config" subpackage loads endpoint, TLS, logging and metrics settings via
viper, and the "cmd/web3" command exposes the client on the command line.
*/
package web3
