// teslable talks to a vehicle over the vehicle security protocol.
//
// Usage:
//
//	teslable [--config file] <command>
//
// Commands:
//
//	keygen    Generate and store the client key pair
//	pubkey    Print the stored public key
//	simulate  Pair with and command a simulated vehicle over an in-memory link
//
// Configuration is read from the optional YAML file and TESLABLE_*
// environment variables, e.g. TESLABLE_KEYS_PATH.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
