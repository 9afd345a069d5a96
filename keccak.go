package web3

import (
	"golang.org/x/crypto/sha3"
)

// Ethereum's "legacy" Keccak-256, as used for hashes, event topics, and
// function selectors. Not the same as the standardized SHA3-256.
func Keccak256(inputs ...[]byte) Hash {
	hasher := sha3.NewLegacyKeccak256()
	for _, input := range inputs {
		hasher.Write(input)
	}
	var out Hash
	hasher.Sum(out[:0])
	return out
}

/*
First 4 bytes of the Keccak-256 hash of a canonical function signature, such
as "transfer(address,uint256)". Prefixes the calldata of every contract call.
*/
func FunctionSelector(signature string) [4]byte {
	hash := Keccak256([]byte(signature))
	var out [4]byte
	copy(out[:], hash[:4])
	return out
}

// Topic of an event with the given canonical signature, such as
// "Transfer(address,address,uint256)".
func EventTopic(signature string) Word {
	return Word(Keccak256([]byte(signature)))
}
