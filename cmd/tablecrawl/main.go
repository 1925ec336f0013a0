// cmd/tablecrawl/main.go
package main

import (
	"github.com/law-makers/tablecrawl/internal/cli"
)

func main() {
	// Execute CLI (signal handling and app initialization happen inside cli.Execute)
	cli.Execute()
}
