package web3

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/pkg/errors"
)

// Strongly-typed version of the "eth_accounts" RPC method.
func EthAccounts(ctx context.Context, trans Trans) ([]Address, error) {
	var out []Address
	err := trans.Call(ctx, &out, "eth_accounts")
	return out, errors.Wrap(err, `error in "eth_accounts"`)
}

// Strongly-typed version of the "eth_blockNumber" RPC method.
func EthBlockNumber(ctx context.Context, trans Trans) (uint64, error) {
	var out HexUint64
	err := trans.Call(ctx, &out, "eth_blockNumber")
	return uint64(out), errors.Wrap(err, `error in "eth_blockNumber"`)
}

// Strongly-typed version of the "eth_chainId" RPC method.
func EthChainId(ctx context.Context, trans Trans) (*big.Int, error) {
	var out HexInt
	err := trans.Call(ctx, &out, "eth_chainId")
	return (*big.Int)(&out), errors.Wrap(err, `error in "eth_chainId"`)
}

// Strongly-typed version of the "eth_coinbase" RPC method.
func EthCoinbase(ctx context.Context, trans Trans) (Address, error) {
	var out Address
	err := trans.Call(ctx, &out, "eth_coinbase")
	return out, errors.Wrap(err, `error in "eth_coinbase"`)
}

// Strongly-typed version of the "eth_getBalance" RPC method.
func EthGetBalance(ctx context.Context, trans Trans, addr Address, num BlockNumber) (*big.Int, error) {
	var out HexInt
	err := trans.Call(ctx, &out, "eth_getBalance", addr, blockNumberParam(num))
	return (*big.Int)(&out), errors.Wrap(err, `error in "eth_getBalance"`)
}

// Strongly-typed version of the "eth_gasPrice" RPC method.
func EthGasPrice(ctx context.Context, trans Trans) (*big.Int, error) {
	var out HexInt
	err := trans.Call(ctx, &out, "eth_gasPrice")
	return (*big.Int)(&out), errors.Wrap(err, `error in "eth_gasPrice"`)
}

/*
Strongly-typed version of the "eth_estimateGas" RPC method.

Note that estimating gas is a somewhat slow operation; the remote node will
attempt to execute the transaction against the current block, running EVM code
if required. This can easily take tens of milliseconds, or more.
*/
func EthEstimateGas(ctx context.Context, trans Trans, msg TxMsg) (*big.Int, error) {
	var out HexInt
	err := trans.Call(ctx, &out, "eth_estimateGas", msg)
	return (*big.Int)(&out), errors.Wrap(err, `error in "eth_estimateGas"`)
}

// Strongly-typed version of the "eth_getBlockByHash" RPC method, without
// transaction bodies.
func EthGetBlockByHash(ctx context.Context, trans Trans, hash Hash) (BlockHead, error) {
	var out BlockHead
	err := trans.Call(ctx, &out, "eth_getBlockByHash", hash, false)
	return out, errors.Wrap(err, `error in "eth_getBlockByHash"`)
}

/*
Strongly-typed version of the "eth_getBlockByNumber" RPC method. The input must
be a number or one of the magic strings; see the "BlockNumber" constants.
*/
func EthGetBlockByNumber(ctx context.Context, trans Trans, num BlockNumber) (BlockHead, error) {
	var out BlockHead
	err := trans.Call(ctx, &out, "eth_getBlockByNumber", blockNumberParam(num), false)
	return out, errors.Wrap(err, `error in "eth_getBlockByNumber"`)
}

// Strongly-typed version of the "eth_getBlockTransactionCountByHash" RPC method.
func EthGetBlockTxCountByHash(ctx context.Context, trans Trans, hash Hash) (uint64, error) {
	var out HexUint64
	err := trans.Call(ctx, &out, "eth_getBlockTransactionCountByHash", hash)
	return uint64(out), errors.Wrap(err, `error in "eth_getBlockTransactionCountByHash"`)
}

// Strongly-typed version of the "eth_getCode" RPC method.
func EthGetCode(ctx context.Context, trans Trans, addr Address, num BlockNumber) ([]byte, error) {
	var out HexBytes
	err := trans.Call(ctx, &out, "eth_getCode", addr, blockNumberParam(num))
	return out, errors.Wrap(err, `error in "eth_getCode"`)
}

// Strongly-typed version of the "eth_getStorageAt" RPC method.
func EthGetStorageAt(ctx context.Context, trans Trans, addr Address, slot Word, num BlockNumber) (Word, error) {
	var out Word
	err := trans.Call(ctx, &out, "eth_getStorageAt", addr, HexBytes(slot[:]), blockNumberParam(num))
	return out, errors.Wrap(err, `error in "eth_getStorageAt"`)
}

// Strongly-typed version of the "eth_getTransactionCount" RPC method. Usually
// used to obtain the next nonce for an account.
func EthGetTxCount(ctx context.Context, trans Trans, addr Address, num BlockNumber) (uint64, error) {
	var out HexUint64
	err := trans.Call(ctx, &out, "eth_getTransactionCount", addr, blockNumberParam(num))
	return uint64(out), errors.Wrap(err, `error in "eth_getTransactionCount"`)
}

// Strongly-typed version of the "eth_getTransactionByHash" RPC method.
func EthGetTxByHash(ctx context.Context, trans Trans, hash Hash) (Transaction, error) {
	var out Transaction
	err := trans.Call(ctx, &out, "eth_getTransactionByHash", hash)
	return out, errors.Wrap(err, `error in "eth_getTransactionByHash"`)
}

/*
Strongly-typed version of the "eth_getTransactionReceipt" RPC method. Returns
nil without error if the transaction is unknown or not yet mined.
*/
func EthGetTxReceipt(ctx context.Context, trans Trans, hash Hash) (*TxReceipt, error) {
	var out *TxReceipt
	err := trans.Call(ctx, &out, "eth_getTransactionReceipt", hash)
	return out, errors.Wrap(err, `error in "eth_getTransactionReceipt"`)
}

// True if the transaction has a receipt, in other words has been mined.
func IsTxConfirmed(ctx context.Context, trans Trans, hash Hash) (bool, error) {
	var body json.RawMessage
	err := trans.Call(ctx, &body, "eth_getTransactionReceipt", hash)
	return !isJsonNull(body), errors.Wrap(err, `error in "eth_getTransactionReceipt"`)
}

// Strongly-typed version of the "eth_getLogs" RPC method.
func EthGetLogs(ctx context.Context, trans Trans, filter LogFilter) ([]LogEntry, error) {
	var out []LogEntry
	err := trans.Call(ctx, &out, "eth_getLogs", filter.normalize())
	return out, errors.Wrap(err, `error in "eth_getLogs"`)
}

// Strongly-typed version of the "eth_sendTransaction" RPC method. The node
// signs with an unlocked account.
func EthSendTx(ctx context.Context, trans Trans, msg TxMsg) (Hash, error) {
	var out Hash
	err := trans.Call(ctx, &out, "eth_sendTransaction", msg)
	return out, errors.Wrap(err, `error in "eth_sendTransaction"`)
}

// Strongly-typed version of the "eth_sendRawTransaction" RPC method. The input
// is a signed, RLP-encoded transaction.
func EthSendRawTx(ctx context.Context, trans Trans, raw []byte) (Hash, error) {
	var out Hash
	err := trans.Call(ctx, &out, "eth_sendRawTransaction", HexBytes(raw))
	return out, errors.Wrap(err, `error in "eth_sendRawTransaction"`)
}

// Strongly-typed version of the "eth_sign" RPC method.
func EthSign(ctx context.Context, trans Trans, addr Address, data []byte) ([]byte, error) {
	var out HexBytes
	err := trans.Call(ctx, &out, "eth_sign", addr, HexBytes(data))
	return out, errors.Wrap(err, `error in "eth_sign"`)
}

// Strongly-typed version of the "eth_syncing" RPC method.
func EthSyncing(ctx context.Context, trans Trans) (SyncState, error) {
	var out SyncState
	err := trans.Call(ctx, &out, "eth_syncing")
	return out, errors.Wrap(err, `error in "eth_syncing"`)
}

// Strongly-typed version of the "eth_mining" RPC method.
func EthMining(ctx context.Context, trans Trans) (bool, error) {
	var out bool
	err := trans.Call(ctx, &out, "eth_mining")
	return out, errors.Wrap(err, `error in "eth_mining"`)
}

// Strongly-typed version of the "eth_hashrate" RPC method.
func EthHashrate(ctx context.Context, trans Trans) (uint64, error) {
	var out HexUint64
	err := trans.Call(ctx, &out, "eth_hashrate")
	return uint64(out), errors.Wrap(err, `error in "eth_hashrate"`)
}

// Strongly-typed version of the "eth_protocolVersion" RPC method.
func EthProtocolVersion(ctx context.Context, trans Trans) (string, error) {
	var out string
	err := trans.Call(ctx, &out, "eth_protocolVersion")
	return out, errors.Wrap(err, `error in "eth_protocolVersion"`)
}

/*
Strongly-typed version of the "eth_call" RPC method.

Invokes a "view" or "pure" contract method. In other words, a read-only method
that doesn't create a new transaction. The caller must ABI-pack the "TxMsg.Data"
payload and ABI-unpack the output.
*/
func EthCall(ctx context.Context, trans Trans, msg TxMsg, num BlockNumber) ([]byte, error) {
	var out HexBytes
	err := trans.Call(ctx, &out, "eth_call", msg, blockNumberParam(num))
	return out, errors.Wrap(err, `error in "eth_call"`)
}

// Same as "EthCall", but always uses the latest block number.
func EthCallLatest(ctx context.Context, trans Trans, msg TxMsg) ([]byte, error) {
	return EthCall(ctx, trans, msg, BlockNumberLatest)
}

/*
Calls a contract function by its canonical signature, such as
"balanceOf(address)". `args` must already be ABI-encoded; they're appended to
the function selector. Returns the raw ABI-encoded output.
*/
func CallContract(ctx context.Context, trans Trans, contract Address, signature string, args []byte) ([]byte, error) {
	selector := FunctionSelector(signature)
	data := make([]byte, 0, len(selector)+len(args))
	data = append(data, selector[:]...)
	data = append(data, args...)
	return EthCallLatest(ctx, trans, TxMsg{To: contract, Data: data})
}

/*
Asks the remote node to estimate the gas required for the transaction. Useful
for ensuring that a contract method will succeed regardless of the expense,
instead of trying to manually "guess" a sensible limit. Use with caution.

The two lookups go out as one batch.
*/
func AddEstimates(ctx context.Context, trans Trans, msg TxMsg) (TxMsg, error) {
	var batch Batch
	var gasPrice, gasLimit HexInt

	if msg.GasPrice == nil {
		batch.Add(&gasPrice, "eth_gasPrice")
	}
	// Leaving this empty allows transactions to execute with near-infinite gas,
	// and may cause transactions to be spuriously rejected.
	if msg.GasLimit == nil {
		batch.Add(&gasLimit, "eth_estimateGas", msg)
	}
	if len(batch.Elems) == 0 {
		return msg, nil
	}

	err := batch.Submit(ctx, trans)
	if err != nil {
		return msg, err
	}
	if msg.GasPrice == nil {
		msg.GasPrice = &gasPrice
	}
	if msg.GasLimit == nil {
		msg.GasLimit = &gasLimit
	}
	return msg, nil
}

// Strongly-typed version of the "net_version" RPC method.
func NetVersion(ctx context.Context, trans Trans) (string, error) {
	var out string
	err := trans.Call(ctx, &out, "net_version")
	return out, errors.Wrap(err, `error in "net_version"`)
}

// Strongly-typed version of the "net_peerCount" RPC method.
func NetPeerCount(ctx context.Context, trans Trans) (uint64, error) {
	var out HexUint64
	err := trans.Call(ctx, &out, "net_peerCount")
	return uint64(out), errors.Wrap(err, `error in "net_peerCount"`)
}

// Strongly-typed version of the "net_listening" RPC method.
func NetListening(ctx context.Context, trans Trans) (bool, error) {
	var out bool
	err := trans.Call(ctx, &out, "net_listening")
	return out, errors.Wrap(err, `error in "net_listening"`)
}

// Strongly-typed version of the "web3_clientVersion" RPC method.
func Web3ClientVersion(ctx context.Context, trans Trans) (string, error) {
	var out string
	err := trans.Call(ctx, &out, "web3_clientVersion")
	return out, errors.Wrap(err, `error in "web3_clientVersion"`)
}

// Strongly-typed version of the "web3_sha3" RPC method. See "Keccak256" for
// the local equivalent.
func Web3Sha3(ctx context.Context, trans Trans, data []byte) (Hash, error) {
	var out Hash
	err := trans.Call(ctx, &out, "web3_sha3", HexBytes(data))
	return out, errors.Wrap(err, `error in "web3_sha3"`)
}

// Strongly-typed version of the "personal_listAccounts" RPC method.
func PersonalListAccounts(ctx context.Context, trans Trans) ([]Address, error) {
	var out []Address
	err := trans.Call(ctx, &out, "personal_listAccounts")
	return out, errors.Wrap(err, `error in "personal_listAccounts"`)
}

// Strongly-typed version of the "personal_newAccount" RPC method.
func PersonalNewAccount(ctx context.Context, trans Trans, pass string) (Address, error) {
	var out Address
	err := trans.Call(ctx, &out, "personal_newAccount", pass)
	return out, errors.Wrap(err, `error in "personal_newAccount"`)
}

// Strongly-typed version of the "personal_unlockAccount" RPC method. A zero
// duration uses the node's default.
func PersonalUnlockAccount(ctx context.Context, trans Trans, addr Address, pass string, seconds uint64) (bool, error) {
	params := []interface{}{addr, pass}
	if seconds > 0 {
		params = append(params, seconds)
	}
	var out bool
	err := trans.Call(ctx, &out, "personal_unlockAccount", params...)
	return out, errors.Wrap(err, `error in "personal_unlockAccount"`)
}

/*
Strongly-typed version of the "personal_sendTransaction" RPC method.
Automatically adds gas estimates.
*/
func PersonalSendTx(ctx context.Context, trans Trans, msg TxMsg, pass string) (Hash, error) {
	msg, err := AddEstimates(ctx, trans, msg)
	if err != nil {
		return Hash{}, errors.Wrap(err, "failed to add gas estimates")
	}

	var hash Hash
	err = trans.Call(ctx, &hash, "personal_sendTransaction", msg, pass)
	return hash, errors.Wrap(err, `error in "personal_sendTransaction"`)
}

/*
Same as "PersonalSendTx", but also waits for the transaction to appear in at
least one new block, via "WaitForTx".
*/
func PersonalSendAndWaitForTx(ctx context.Context, trans Trans, msg TxMsg, pass string) (Hash, error) {
	hash, err := PersonalSendTx(ctx, trans, msg, pass)
	if err != nil {
		return hash, err
	}
	err = WaitForTx(ctx, trans, hash)
	return hash, err
}

// Strongly-typed version of the "txpool_status" RPC method.
func TxpoolStatus(ctx context.Context, trans Trans) (TxpoolStats, error) {
	var out TxpoolStats
	err := trans.Call(ctx, &out, "txpool_status")
	return out, errors.Wrap(err, `error in "txpool_status"`)
}

// Strongly-typed version of the Parity-specific "trace_filter" RPC method.
func TraceFilter(ctx context.Context, trans Trans, params ParityTraceFilterParams) ([]ParityTrace, error) {
	params.FromBlock = blockNumberParam(params.FromBlock)
	params.ToBlock = blockNumberParam(params.ToBlock)

	var out []ParityTrace
	err := trans.Call(ctx, &out, "trace_filter", params)
	return out, errors.Wrap(err, `error in "trace_filter"`)
}

/*
Shortcut for deploying a contract via "PersonalSendAndWaitForTx", waiting for
the transaction to be confirmed, and retrieving the deployed contract address.
*/
func PersonalDeployContract(ctx context.Context, trans Trans, code []byte, sender Address, pass string) (
	Hash, Address, error,
) {
	msg, err := ContractDeploymentTxMsg(code, sender)
	if err != nil {
		return Hash{}, Address{}, err
	}

	hash, err := PersonalSendAndWaitForTx(ctx, trans, msg, pass)
	if err != nil {
		return hash, Address{}, err
	}

	addr, err := EthContractAddress(ctx, trans, hash)
	return hash, addr, err
}

/*
Formulates a TxMsg that will deploy a contract with the provided code. Returns
an error if any of the inputs appear to be invalid.
*/
func ContractDeploymentTxMsg(code []byte, sender Address) (TxMsg, error) {
	if sender == ZeroAddress {
		return TxMsg{}, errors.New("contract deployment requires a sender address")
	}
	if len(code) == 0 {
		return TxMsg{}, errors.New("contract deployment requires contract code")
	}
	return TxMsg{From: sender, Data: HexBytes(code)}, nil
}

/*
Retrieves the address of the contract created by the given transaction.
Returns an error if the transaction isn't mined or isn't a contract deployment.
*/
func EthContractAddress(ctx context.Context, trans Trans, hash Hash) (Address, error) {
	receipt, err := EthGetTxReceipt(ctx, trans, hash)
	if err != nil {
		return Address{}, errors.Wrapf(err, `failed to retrieve contract address for transaction %v`, hash)
	}
	if receipt == nil || receipt.ContractAddress == ZeroAddress {
		return Address{}, errors.Errorf(`no contract address found at transaction %v`, hash)
	}
	return receipt.ContractAddress, nil
}

func (self LogFilter) normalize() LogFilter {
	if self.FromBlock != nil {
		self.FromBlock = blockNumberParam(self.FromBlock)
	}
	if self.ToBlock != nil {
		self.ToBlock = blockNumberParam(self.ToBlock)
	}
	return self
}
