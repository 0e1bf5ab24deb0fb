package main

import "github.com/ethpandaops/structlog-decoder/cmd"

func main() {
	cmd.Execute()
}
