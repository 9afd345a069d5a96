package web3

import (
	"encoding/hex"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHexEncodeDecode(t *testing.T) {
	requireEqual(t, "0x", string(HexEncode(nil)))
	requireEqual(t, "0x00ff10", string(HexEncode([]byte{0, 255, 16})))

	out, err := HexDecode([]byte("0x00ff10"))
	requireNoErr(t, err)
	requireEqual(t, []byte{0, 255, 16}, out)

	out, err = HexDecode([]byte("0X0A"))
	requireNoErr(t, err)
	requireEqual(t, []byte{10}, out)

	out, err = HexDecode(nil)
	requireNoErr(t, err)
	requireEqual(t, 0, len(out))

	for _, input := range []string{"00ff", "0x0", "0xzz"} {
		_, err := HexDecode([]byte(input))
		require.Error(t, err, input)
	}
}

func TestHexDecodeToLeavesOutputOnError(t *testing.T) {
	output := []byte{1, 2}
	require.Error(t, HexDecodeTo(output, []byte("0x12zz")))
	requireEqual(t, []byte{1, 2}, output)

	require.Error(t, HexDecodeTo(output, []byte("0x123456")))
}

func TestHexUint64Json(t *testing.T) {
	out, err := json.Marshal(HexUint64(255))
	requireNoErr(t, err)
	requireEqual(t, `"0xff"`, string(out))

	var num HexUint64
	requireNoErr(t, json.Unmarshal([]byte(`"0x0"`), &num))
	requireEqual(t, HexUint64(0), num)

	require.Error(t, json.Unmarshal([]byte(`"255"`), &num))
	require.Error(t, json.Unmarshal([]byte(`"0x10000000000000000"`), &num))
}

func TestHexIntJson(t *testing.T) {
	num := (*HexInt)(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	out, err := json.Marshal(num)
	requireNoErr(t, err)
	requireEqual(t, `"0xde0b6b3a7640000"`, string(out))

	var decoded HexInt
	requireNoErr(t, json.Unmarshal(out, &decoded))
	require.Zero(t, (*big.Int)(num).Cmp((*big.Int)(&decoded)))
}

func TestAddressEncoding(t *testing.T) {
	addr := MustParseAddress("0x00000000219ab540356cbb839cbe05303d7705fa")
	requireEqual(t, "0x00000000219ab540356cbb839cbe05303d7705fa", addr.String())

	out, err := json.Marshal(addr)
	requireNoErr(t, err)
	requireEqual(t, `"0x00000000219ab540356cbb839cbe05303d7705fa"`, string(out))

	out, err = json.Marshal(ZeroAddress)
	requireNoErr(t, err)
	requireEqual(t, `null`, string(out))

	word := addr.Word()
	requireEqual(t, "0x00000000000000000000000000000000219ab540356cbb839cbe05303d7705fa", word.String())

	_, err = ParseAddress("0x1234")
	require.Error(t, err)
}

func TestBlockNumberParam(t *testing.T) {
	encode := func(num BlockNumber) string {
		out, err := json.Marshal(blockNumberParam(num))
		requireNoErr(t, err)
		return string(out)
	}

	requireEqual(t, `"latest"`, encode(nil))
	requireEqual(t, `"pending"`, encode(BlockNumberPending))
	requireEqual(t, `"0x10"`, encode(uint64(16)))
	requireEqual(t, `"0x10"`, encode(16))
	requireEqual(t, `"0x10"`, encode(big.NewInt(16)))
	requireEqual(t, `"0x10"`, encode(HexUint64(16)))
}

func TestSyncStateJson(t *testing.T) {
	var state SyncState

	requireNoErr(t, json.Unmarshal([]byte(`false`), &state))
	requireEqual(t, SyncState{}, state)

	requireNoErr(t, json.Unmarshal([]byte(`{"startingBlock":"0x1","currentBlock":"0x5","highestBlock":"0xa"}`), &state))
	require.True(t, state.Syncing)
	requireEqual(t, HexUint64(5), state.Progress.CurrentBlock)

	requireNoErr(t, json.Unmarshal([]byte(`{"syncing":false}`), &state))
	require.False(t, state.Syncing)
	require.Nil(t, state.Progress)

	requireNoErr(t, json.Unmarshal([]byte(`{"syncing":true,"status":{"startingBlock":"0x0","currentBlock":"0x2","highestBlock":"0x3"}}`), &state))
	require.True(t, state.Syncing)
	requireEqual(t, HexUint64(3), state.Progress.HighestBlock)
}

func TestEthToWei(t *testing.T) {
	requireEqual(t, "1000000000000000000", EthToWei(1).String())
	requireEqual(t, "1500000000000000000", EthToWei(1.5).String())
	requireEqual(t, 2.0, WeiToEth(big.NewInt(2e18)))
}

func TestKeccak(t *testing.T) {
	requireEqual(t, "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470", Keccak256().String())

	selector := FunctionSelector("transfer(address,uint256)")
	requireEqual(t, "a9059cbb", hex.EncodeToString(selector[:]))

	requireEqual(t, "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef",
		EventTopic("Transfer(address,address,uint256)").String())
}

func BenchmarkHexEncode(b *testing.B) {
	input := make([]byte, 32)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = HexEncode(input)
	}
}
