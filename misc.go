package web3

import (
	"math/big"
	"time"
	"unsafe"
)

// Conversion ratios.
const (
	Wei   = 1
	Gwei  = 1e9  // Measured in wei
	Ether = 1e18 // Measured in wei
)

// "Magic" words understood by RPC methods that expect a block number.
const (
	BlockNumberEarliest  = "earliest"
	BlockNumberLatest    = "latest"
	BlockNumberPending   = "pending"
	BlockNumberSafe      = "safe"
	BlockNumberFinalized = "finalized"
)

// Zero-initialized arrays for equality comparisons.
var (
	ZeroAddress Address
	ZeroWord    Word
	ZeroHash    Hash
	ZeroBloom   Bloom
)

const (
	defaultDialTimeout  = 10 * time.Second
	defaultPollInterval = time.Second
	wsCloseTimeout      = time.Second
	unsubscribeTimeout  = 5 * time.Second
)

var etherBig = big.NewFloat(Ether)

/*
Converts ethers to wei. Truncates leftover fractional digits. Beware: floats
should not be used for financial calculations. Conversion functions are
provided only for display purposes and for handling user input.
*/
func EthToWei(eth float64) *big.Int {
	num := big.NewFloat(eth)
	num.Mul(num, etherBig)
	out, _ := num.Int(nil)
	return out
}

// Converts wei to ethers. Same caveats as "EthToWei".
func WeiToEth(wei *big.Int) float64 {
	num := new(big.Float).SetInt(wei)
	num.Quo(num, etherBig)
	out, _ := num.Float64()
	return out
}

// Reinterprets a byte slice as a string, saving an allocation. The bytes must
// not be mutated afterwards.
func bytesToMutableString(bytes []byte) string {
	return unsafe.String(unsafe.SliceData(bytes), len(bytes))
}

// Returns a byte slice backed by the provided string. Must be treated as
// read-only.
func stringToBytesUnsafe(str string) []byte {
	return unsafe.Slice(unsafe.StringData(str), len(str))
}
