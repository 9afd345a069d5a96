package web3

import (
	"encoding/hex"

	"github.com/pkg/errors"
)

/*
Similar to "hex.Encode" from "encoding/hex", but prepends "0x". The output
size must be exactly "HexEncodedLen(len(input))".
*/
func HexEncodeTo(output []byte, input []byte) error {
	if HexEncodedLen(len(input)) != len(output) {
		return errors.Errorf("hex-encoded output has %d bytes, have space for %d",
			HexEncodedLen(len(input)), len(output))
	}
	output[0] = '0'
	output[1] = 'x'
	hex.Encode(output[2:], input)
	return nil
}

// Version of "HexEncodeTo" that always allocates the output.
func HexEncode(input []byte) []byte {
	out := make([]byte, HexEncodedLen(len(input)))
	_ = HexEncodeTo(out, input)
	return out
}

/*
Hex-decodes the input, which must carry the "0x" prefix, into an output of
exactly "HexDecodedLen(len(input))" bytes. Empty input is ok. On error, the
output is left untouched.
*/
func HexDecodeTo(output []byte, input []byte) error {
	raw, err := drop0x(input)
	if err != nil {
		return err
	}
	if len(raw)%2 != 0 {
		return errors.Errorf("hex input %s has odd length", input)
	}
	if len(raw)/2 != len(output) {
		return errors.Errorf("hex input %s has %d bytes, want %d", input, len(raw)/2, len(output))
	}

	buf := make([]byte, len(output))
	_, err = hex.Decode(buf, raw)
	if err != nil {
		return errors.WithStack(err)
	}
	copy(output, buf)
	return nil
}

// Version of "HexDecodeTo" that always allocates the output.
func HexDecode(input []byte) ([]byte, error) {
	output := make([]byte, HexDecodedLen(len(input)))
	err := HexDecodeTo(output, input)
	return output, err
}

// Version of "HexDecode" that accepts a string and panics on error. Convenient
// for initializing global variables.
func MustHexParse(input string) []byte {
	output, err := HexDecode(stringToBytesUnsafe(input))
	if err != nil {
		panic(err)
	}
	return output
}

func drop0x(input []byte) ([]byte, error) {
	if len(input) == 0 {
		return nil, nil
	}
	if len(input) >= 2 && input[0] == '0' && (input[1] == 'x' || input[1] == 'X') {
		return input[2:], nil
	}
	return input, errors.Errorf("malformed input %s: missing 0x prefix", input)
}

// Bytes needed to hex-encode `len` bytes with the "0x" prefix.
func HexEncodedLen(len int) int {
	return (len * 2) + 2
}

// Bytes needed to hold the decoded form of `len` hex characters, including
// the "0x" prefix. Empty input requires zero output.
func HexDecodedLen(len int) int {
	if len < 2 {
		return 0
	}
	return (len - 2) / 2
}

func hexEncodeQuoted(input []byte) []byte {
	out := make([]byte, HexEncodedLen(len(input))+2)
	out[0] = '"'
	_ = HexEncodeTo(out[1:len(out)-1], input)
	out[len(out)-1] = '"'
	return out
}
