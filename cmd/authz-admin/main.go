// Command authz-admin performs operator tasks against the authz stores: schema
// migration, client and user registration, and token maintenance.
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
