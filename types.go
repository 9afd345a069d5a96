package web3

import (
	"bytes"
	"encoding/json"
	"math/big"
	"strconv"

	"github.com/pkg/errors"
)

var null = []byte("null")

// Version of "[]byte" that uses "0x"-prefixed hex encoding and decoding.
type HexBytes []byte

// Decodes the provided string. Zero-length input is ok. Otherwise, it must be
// prefixed with "0x".
func ParseHexBytes(input string) (HexBytes, error) {
	var out HexBytes
	err := out.UnmarshalText(stringToBytesUnsafe(input))
	return out, err
}

// Implements "encoding.TextMarshaler". Uses hex encoding prefixed with "0x".
func (self HexBytes) MarshalText() ([]byte, error) { return HexEncode(self), nil }

// Implements "encoding.TextUnmarshaler".
func (self *HexBytes) UnmarshalText(input []byte) error {
	out, err := HexDecode(input)
	if err != nil {
		return err
	}
	*self = out
	return nil
}

// Implements "json.Marshaler". A zero-length value encodes as "null".
func (self HexBytes) MarshalJSON() ([]byte, error) {
	if len(self) == 0 {
		return null, nil
	}
	return hexEncodeQuoted(self), nil
}

func (self HexBytes) String() string { return bytesToMutableString(HexEncode(self)) }

// Version of `big.Int` that encodes/decodes in base 16 with the "0x" prefix.
type HexInt big.Int

// Implements "encoding.TextMarshaler".
func (self *HexInt) MarshalText() ([]byte, error) {
	out := make([]byte, 0, 16)
	out = append(out, '0', 'x')
	return (*big.Int)(self).Append(out, 16), nil
}

// Implements "encoding.TextUnmarshaler". The input must be in base 16, prefixed
// with "0x".
func (self *HexInt) UnmarshalText(input []byte) error {
	raw, err := drop0x(input)
	if err != nil {
		return err
	}
	_, ok := (*big.Int)(self).SetString(bytesToMutableString(raw), 16)
	if !ok {
		return errors.Errorf("failed to decode %q as a hex integer", input)
	}
	return nil
}

func (self *HexInt) String() string {
	out, _ := self.MarshalText()
	return bytesToMutableString(out)
}

// Version of `uint64` that encodes/decodes in base 16 with the "0x" prefix.
type HexUint64 uint64

// Implements "encoding.TextMarshaler".
func (self HexUint64) MarshalText() ([]byte, error) {
	out := make([]byte, 0, 18)
	out = append(out, '0', 'x')
	return strconv.AppendUint(out, uint64(self), 16), nil
}

// Implements "encoding.TextUnmarshaler". The input must be in base 16, prefixed
// with "0x".
func (self *HexUint64) UnmarshalText(input []byte) error {
	raw, err := drop0x(input)
	if err != nil {
		return err
	}
	out, err := strconv.ParseUint(bytesToMutableString(raw), 16, 64)
	if err != nil {
		return errors.WithStack(err)
	}
	*self = HexUint64(out)
	return nil
}

func (self HexUint64) String() string {
	out, _ := self.MarshalText()
	return bytesToMutableString(out)
}

/*
Compact representation of an Ethereum address. Uses hex-encoding and
hex-decoding with the mandatory "0x" prefix.

To avoid gotchas, a zero-initialized Address{} JSON-encodes as "null" and
text-encodes as "".
*/
type Address [20]byte

func ParseAddress(input string) (Address, error) {
	var out Address
	err := out.UnmarshalText(stringToBytesUnsafe(input))
	return out, err
}

// Panics on error. Convenient for initializing global variables.
func MustParseAddress(input string) Address {
	out, err := ParseAddress(input)
	if err != nil {
		panic(err)
	}
	return out
}

func (self Address) MarshalText() ([]byte, error) {
	return marshalFixedText(self[:], self == ZeroAddress)
}

func (self *Address) UnmarshalText(input []byte) error { return unmarshalFixed(self[:], input) }

func (self Address) MarshalJSON() ([]byte, error) {
	return marshalFixedJson(self[:], self == ZeroAddress)
}

// Unlike "MarshalText", doesn't special-case the zero value.
func (self Address) String() string { return bytesToMutableString(HexEncode(self[:])) }

// Converts into a Word for event log filtering, zero-padded on the left.
func (self Address) Word() Word {
	var out Word
	copy(out[len(out)-len(self):], self[:])
	return out
}

/*
A Word represents the standard memory granularity of the EVM: 32 bytes of
arbitrary content. Also used for log topics and storage slots. Hash has the
same structure, but a Word is not assumed to be a hash.

An empty Word{} text-encodes as "" and JSON-encodes as `null`.
*/
type Word [32]byte

func ParseWord(input string) (Word, error) {
	var out Word
	err := out.UnmarshalText(stringToBytesUnsafe(input))
	return out, err
}

// Panics on error. Convenient for initializing global variables.
func MustParseWord(input string) Word {
	out, err := ParseWord(input)
	if err != nil {
		panic(err)
	}
	return out
}

func (self Word) MarshalText() ([]byte, error) { return marshalFixedText(self[:], self == ZeroWord) }

func (self *Word) UnmarshalText(input []byte) error { return unmarshalFixed(self[:], input) }

func (self Word) MarshalJSON() ([]byte, error) { return marshalFixedJson(self[:], self == ZeroWord) }

func (self Word) String() string { return bytesToMutableString(HexEncode(self[:])) }

// Usually represents a block or transaction hash.
type Hash [32]byte

func ParseHash(input string) (Hash, error) {
	word, err := ParseWord(input)
	return Hash(word), err
}

// Panics on error. Convenient for initializing global variables.
func MustParseHash(input string) Hash { return Hash(MustParseWord(input)) }

func (self Hash) MarshalText() ([]byte, error) { return Word(self).MarshalText() }

func (self *Hash) UnmarshalText(input []byte) error { return (*Word)(self).UnmarshalText(input) }

func (self Hash) MarshalJSON() ([]byte, error) { return Word(self).MarshalJSON() }

func (self Hash) String() string { return Word(self).String() }

// Bloom filter of a block or receipt.
type Bloom [256]byte

func (self Bloom) MarshalText() ([]byte, error) { return marshalFixedText(self[:], self == ZeroBloom) }

func (self *Bloom) UnmarshalText(input []byte) error { return unmarshalFixed(self[:], input) }

func (self Bloom) MarshalJSON() ([]byte, error) { return marshalFixedJson(self[:], self == ZeroBloom) }

func (self Bloom) String() string { return bytesToMutableString(HexEncode(self[:])) }

func marshalFixedText(input []byte, zero bool) ([]byte, error) {
	if zero {
		return nil, nil
	}
	return HexEncode(input), nil
}

func marshalFixedJson(input []byte, zero bool) ([]byte, error) {
	if zero {
		return null, nil
	}
	return hexEncodeQuoted(input), nil
}

func unmarshalFixed(output []byte, input []byte) error {
	if len(input) == 0 {
		clear(output)
		return nil
	}
	return HexDecodeTo(output, input)
}

/*
Represents the input for an Ethereum transaction, or the input to a non-mutating
contract call. Passed to the various RPC methods.
*/
type TxMsg struct {
	From     Address  `json:"from"`
	To       Address  `json:"to"`
	Data     HexBytes `json:"data"`
	Value    *HexInt  `json:"value"`
	GasPrice *HexInt  `json:"gasPrice"`
	GasLimit *HexInt  `json:"gas"`
	Nonce    *HexInt  `json:"nonce,omitempty"`
}

// Represents an Ethereum block without any attached transactions.
type BlockHead struct {
	Author           Address  `json:"author"`
	BaseFeePerGas    *HexInt  `json:"baseFeePerGas"`
	Difficulty       *HexInt  `json:"difficulty"`
	ExtraData        HexBytes `json:"extraData"`
	GasLimit         *HexInt  `json:"gasLimit"`
	GasUsed          *HexInt  `json:"gasUsed"`
	Hash             Hash     `json:"hash"`
	LogsBloom        Bloom    `json:"logsBloom"`
	Miner            Address  `json:"miner"`
	MixHash          Hash     `json:"mixHash"`
	Nonce            HexBytes `json:"nonce"`
	Number           *HexInt  `json:"number"`
	ParentHash       Hash     `json:"parentHash"`
	ReceiptsRoot     Hash     `json:"receiptsRoot"`
	Sha3Uncles       Hash     `json:"sha3Uncles"`
	StateRoot        Hash     `json:"stateRoot"`
	Timestamp        *HexInt  `json:"timestamp"`
	TransactionsRoot Hash     `json:"transactionsRoot"`
}

// Represents an Ethereum transaction.
type Transaction struct {
	Hash             Hash     `json:"hash"`
	Nonce            *HexInt  `json:"nonce"`
	BlockHash        Hash     `json:"blockHash"`
	BlockNumber      *HexInt  `json:"blockNumber"`
	TransactionIndex *HexInt  `json:"transactionIndex"`
	From             Address  `json:"from"`
	To               Address  `json:"to"`
	Value            *HexInt  `json:"value"`
	GasPrice         *HexInt  `json:"gasPrice"`
	Gas              *HexInt  `json:"gas"`
	Input            HexBytes `json:"input"`
	Type             *HexInt  `json:"type"`
	ChainId          *HexInt  `json:"chainId"`
	V                *HexInt  `json:"v"`
	R                *HexInt  `json:"r"`
	S                *HexInt  `json:"s"`
}

// Represents a transaction receipt.
type TxReceipt struct {
	BlockHash         Hash       `json:"blockHash"`
	BlockNumber       *HexInt    `json:"blockNumber"`
	ContractAddress   Address    `json:"contractAddress"`
	From              Address    `json:"from"`
	To                Address    `json:"to"`
	GasUsed           *HexInt    `json:"gasUsed"`
	EffectiveGasPrice *HexInt    `json:"effectiveGasPrice"`
	Logs              []LogEntry `json:"logs"`
	LogsBloom         Bloom      `json:"logsBloom"`
	CumulativeGasUsed *HexInt    `json:"cumulativeGasUsed"`
	Status            *HexInt    `json:"status"`
	TransactionHash   Hash       `json:"transactionHash"`
	TransactionIndex  *HexInt    `json:"transactionIndex"`
}

// A log entry, obtained via "EthGetLogs", filters or "logs" subscriptions.
type LogEntry struct {
	Address          Address   `json:"address"`
	Topics           []Word    `json:"topics"`
	Data             HexBytes  `json:"data"`
	BlockHash        Hash      `json:"blockHash"`
	BlockNumber      HexUint64 `json:"blockNumber"`
	TransactionHash  Hash      `json:"transactionHash"`
	TransactionIndex HexUint64 `json:"transactionIndex"`
	LogIndex         HexUint64 `json:"logIndex"`
	Removed          bool      `json:"removed"`
}

/*
Stand-in for anything representing a block number. Makes the signatures of
RPC functions more readable.

Accepts uint64, *big.Int, HexUint64, *HexInt, or one of the "BlockNumberX"
strings. See "blockNumberParam".
*/
type BlockNumber interface{}

// Normalizes plain Go numbers into their hex-encoded form.
func blockNumberParam(num BlockNumber) interface{} {
	switch num := num.(type) {
	case nil:
		return BlockNumberLatest
	case uint64:
		return HexUint64(num)
	case int:
		return HexUint64(num)
	case *big.Int:
		return (*HexInt)(num)
	}
	return num
}

/*
LogFilter is passed to "EthGetLogs", "EthNewFilter" and "SubscribeLogs". See
https://ethereum.org/en/developers/docs/apis/json-rpc/#eth_newfilter.

"Topics" represent indexed event parameters, one Word per position, or nested
arrays of alternatives.
*/
type LogFilter struct {
	FromBlock BlockNumber `json:"fromBlock,omitempty"`
	ToBlock   BlockNumber `json:"toBlock,omitempty"`
	BlockHash *Hash       `json:"blockHash,omitempty"`
	Address   []Address   `json:"address,omitempty"`
	Topics    interface{} `json:"topics,omitempty"`
}

// Opaque id of a filter installed with "EthNewFilter" and friends.
type FilterId string

// Progress of a syncing node.
type SyncProgress struct {
	StartingBlock HexUint64 `json:"startingBlock"`
	CurrentBlock  HexUint64 `json:"currentBlock"`
	HighestBlock  HexUint64 `json:"highestBlock"`
}

/*
Result of "eth_syncing" and payload of "syncing" subscriptions. Nodes send
either a boolean, a progress object, or a "{syncing, status}" envelope; all
decode into this.
*/
type SyncState struct {
	Syncing  bool
	Progress *SyncProgress
}

// Implements "json.Unmarshaler".
func (self *SyncState) UnmarshalJSON(input []byte) error {
	input = bytes.TrimSpace(input)
	*self = SyncState{}

	if isJsonNull(input) {
		return nil
	}
	if input[0] != '{' {
		return errors.WithStack(json.Unmarshal(input, &self.Syncing))
	}

	var envelope struct {
		Syncing *bool         `json:"syncing"`
		Status  *SyncProgress `json:"status"`
	}
	err := json.Unmarshal(input, &envelope)
	if err != nil {
		return errors.WithStack(err)
	}
	if envelope.Syncing != nil {
		self.Syncing = *envelope.Syncing
		self.Progress = envelope.Status
		return nil
	}

	var progress SyncProgress
	err = json.Unmarshal(input, &progress)
	if err != nil {
		return errors.WithStack(err)
	}
	self.Syncing = true
	self.Progress = &progress
	return nil
}

// Result of "txpool_status".
type TxpoolStats struct {
	Pending HexUint64 `json:"pending"`
	Queued  HexUint64 `json:"queued"`
}

// Input to the Parity-specific RPC method "trace_filter".
type ParityTraceFilterParams struct {
	FromBlock   BlockNumber `json:"fromBlock"`
	ToBlock     BlockNumber `json:"toBlock"`
	FromAddress []Address   `json:"fromAddress"`
	ToAddress   []Address   `json:"toAddress"`
	After       uint64      `json:"after,omitempty"`
	Count       uint64      `json:"count,omitempty"`
}

/*
Output from the Parity-specific RPC method "trace_filter". ".Action" and
".Result" are decoded into the concrete type matching ".Type".
*/
type ParityTrace struct {
	// Action variant: "call", "create", "suicide", "reward"
	Type   string      `json:"type"`
	Action interface{} `json:"action"`
	Result interface{} `json:"result"` // mut-ex with Error
	Error  string      `json:"error"`

	TraceAddress        []uint64 `json:"traceAddress"`
	Subtraces           uint64   `json:"subtraces"`
	TransactionPosition uint64   `json:"transactionPosition"`
	TransactionHash     Hash     `json:"transactionHash"`
	BlockNumber         uint64   `json:"blockNumber"`
	BlockHash           Hash     `json:"blockHash"`
}

// Implements "json.Unmarshaler".
func (self *ParityTrace) UnmarshalJSON(input []byte) error {
	var header struct{ Type string }
	err := json.Unmarshal(input, &header)
	if err != nil {
		return errors.WithStack(err)
	}

	type blank ParityTrace
	var action, result interface{}

	switch header.Type {
	case "call":
		action, result = &ParityCall{}, &ParityCallResult{}
	case "create":
		action, result = &ParityCreate{}, &ParityCreateResult{}
	case "reward":
		action = &ParityReward{}
	case "suicide":
		action = &ParitySuicide{}
	}

	self.Action, self.Result = action, result
	err = json.Unmarshal(input, (*blank)(self))
	if err != nil {
		return errors.WithStack(err)
	}
	self.Action, self.Result = deref(self.Action), deref(self.Result)
	return nil
}

func deref(val interface{}) interface{} {
	switch val := val.(type) {
	case *ParityCall:
		return *val
	case *ParityCallResult:
		return *val
	case *ParityCreate:
		return *val
	case *ParityCreateResult:
		return *val
	case *ParityReward:
		return *val
	case *ParitySuicide:
		return *val
	}
	return val
}

// One of the possible types for "ParityTrace.Action".
type ParityCall struct {
	CallType string   `json:"callType"`
	Gas      *HexInt  `json:"gas"`
	From     Address  `json:"from"`
	To       Address  `json:"to"`
	Value    *HexInt  `json:"value"`
	Input    HexBytes `json:"input"`
}

// One of the possible types for "ParityTrace.Action".
type ParityCreate struct {
	Gas   *HexInt  `json:"gas"`
	From  Address  `json:"from"`
	Value *HexInt  `json:"value"`
	Init  HexBytes `json:"init"`
}

// One of the possible types for "ParityTrace.Action".
type ParitySuicide struct {
	Address       Address `json:"address"`
	RefundAddress Address `json:"refundAddress"`
	Balance       *HexInt `json:"balance"`
}

// One of the possible types for "ParityTrace.Action".
type ParityReward struct {
	Author     Address `json:"author"`
	Value      *HexInt `json:"value"`
	RewardType string  `json:"rewardtype"`
}

// One of the possible types for "ParityTrace.Result".
type ParityCallResult struct {
	GasUsed *HexInt  `json:"gasUsed"`
	Output  HexBytes `json:"output"`
}

// One of the possible types for "ParityTrace.Result".
type ParityCreateResult struct {
	GasUsed *HexInt  `json:"gasUsed"`
	Code    HexBytes `json:"code"`
	Address Address  `json:"address"`
}
