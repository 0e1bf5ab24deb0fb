package nametag

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ethpandaops/structlog-decoder/pkg/ethereum/execution"
)

// ContractCaller is the part of an execution node the contract resolvers need.
type ContractCaller interface {
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// CodeReader fetches deployed bytecode.
type CodeReader interface {
	CodeAt(ctx context.Context, account common.Address) ([]byte, error)
}

const (
	stringGettersABI = `[
		{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
		{"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
		{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]}
	]`
	bytes32GettersABI = `[
		{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bytes32"}]},
		{"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bytes32"}]}
	]`
)

var (
	stringGetters  = mustParseABI(stringGettersABI)
	bytes32Getters = mustParseABI(bytes32GettersABI)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("invalid getter abi: %v", err))
	}

	return parsed
}

// ContractNames resolves token style contracts by calling symbol() and then
// name(). Both string and bytes32 return values are understood.
type ContractNames struct {
	caller ContractCaller
}

func NewContractNames(caller ContractCaller) *ContractNames {
	return &ContractNames{caller: caller}
}

func (r *ContractNames) Name() string { return "contract" }

func (r *ContractNames) Resolve(ctx context.Context, addr common.Address) (string, error) {
	for _, method := range []string{"symbol", "name"} {
		name, err := r.call(ctx, addr, method)
		if err != nil {
			return "", err
		}

		if name != "" {
			return strings.ReplaceAll(name, " ", ""), nil
		}
	}

	return "", nil
}

// call returns an empty name when the contract reverted or answered with
// something that does not decode.
func (r *ContractNames) call(ctx context.Context, addr common.Address, method string) (string, error) {
	input, err := stringGetters.Pack(method)
	if err != nil {
		return "", err
	}

	out, err := r.caller.CallContract(ctx, addr, input)
	if err != nil {
		if errors.Is(err, execution.ErrExecutionReverted) {
			return "", nil
		}

		return "", fmt.Errorf("%s(): %w", method, err)
	}

	return decodeName(method, out), nil
}

func decodeName(method string, out []byte) string {
	if len(out) == 0 {
		return ""
	}

	if values, err := stringGetters.Unpack(method, out); err == nil && len(values) == 1 {
		if s, ok := values[0].(string); ok && utf8.ValidString(s) {
			return s
		}
	}

	values, err := bytes32Getters.Unpack(method, out)
	if err != nil || len(values) != 1 {
		return ""
	}

	raw, ok := values[0].([32]byte)
	if !ok {
		return ""
	}

	trimmed := bytes.TrimRight(raw[:], "\x00")
	if !utf8.Valid(trimmed) {
		return ""
	}

	return string(trimmed)
}

// Decimals returns the decimals() of an ERC20 style token. ok is false when
// the contract does not implement it.
func Decimals(ctx context.Context, caller ContractCaller, token common.Address) (decimals uint8, ok bool, err error) {
	input, err := stringGetters.Pack("decimals")
	if err != nil {
		return 0, false, err
	}

	out, err := caller.CallContract(ctx, token, input)
	if err != nil {
		if errors.Is(err, execution.ErrExecutionReverted) {
			return 0, false, nil
		}

		return 0, false, fmt.Errorf("decimals(): %w", err)
	}

	values, err := stringGetters.Unpack("decimals", out)
	if err != nil || len(values) != 1 {
		return 0, false, nil
	}

	d, isUint8 := values[0].(uint8)

	return d, isUint8, nil
}
