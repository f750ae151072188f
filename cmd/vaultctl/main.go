// Command vaultctl operates a hookvault deployment.
package main

import "github.com/mesh-intelligence/hookvault/internal/cli"

func main() {
	cli.Execute()
}
