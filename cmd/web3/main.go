/*
Command-line client for Ethereum JSON-RPC nodes, built on
"github.com/purelabio/web3".

Installation:

	go install github.com/purelabio/web3/cmd/web3@latest

Example usage:

	web3 block-number --endpoint=http://127.0.0.1:8545
	web3 call eth_getBalance 0x00000000219ab540356cbb839cbe05303d7705fa latest
	web3 batch requests.json --format=go
	web3 subscribe newHeads --endpoint=ws://127.0.0.1:8546

Settings may also come from a config file ("--config") or from environment
variables prefixed with "WEB3_", such as "WEB3_ENDPOINT".
*/
package main

import (
	"fmt"
	"os"
)

func main() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
