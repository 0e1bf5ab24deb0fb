package services

import (
	"context"
	"strings"
)

// Name identifies a node service.
type Name string

// Service is a background component attached to an execution node.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Name() Name
	OnReady(ctx context.Context, cb func(context.Context) error)
}

// Client is an execution client implementation.
type Client string

const (
	ClientUnknown    Client = "unknown"
	ClientGeth       Client = "geth"
	ClientErigon     Client = "erigon"
	ClientNethermind Client = "nethermind"
	ClientBesu       Client = "besu"
	ClientReth       Client = "reth"
	ClientAnvil      Client = "anvil"
	ClientHardhat    Client = "hardhat"
)

var knownClients = []Client{
	ClientGeth,
	ClientErigon,
	ClientNethermind,
	ClientBesu,
	ClientReth,
	ClientAnvil,
	ClientHardhat,
}

// ClientFromString extracts the client from a web3_clientVersion string,
// e.g. "Geth/v1.14.0-stable/linux-amd64/go1.22".
func ClientFromString(version string) Client {
	lower := strings.ToLower(version)

	for _, c := range knownClients {
		if strings.HasPrefix(lower, string(c)) {
			return c
		}
	}

	return ClientUnknown
}
