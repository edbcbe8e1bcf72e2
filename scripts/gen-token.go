package main

import (
	"fmt"
	"os"

	"github.com/wavelink/gateway-server-go/internal/util"
)

// Prints a fresh tenant API token and the hash to store in the tenants
// table. The plaintext token is shown once and never persisted.
func main() {
	token, err := util.GenerateToken()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("token: %s\n", token)
	fmt.Printf("hash:  %s\n", util.HashToken(token))
}
