// Command tabula manages versioned CSV documents.
package main

import "github.com/mesh-intelligence/tabula/internal/cli"

func main() {
	cli.Execute()
}
