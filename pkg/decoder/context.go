package decoder

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ethpandaops/structlog-decoder/pkg/ethereum/execution"
)

// AddressContext decides which address executes inside a newly opened frame.
// Events emitted in that frame carry it as their emitter.
type AddressContext interface {
	FrameAddress(call *CallParams, caller common.Address) common.Address
}

// CodeAddressContext attributes a frame to the callee's address for every call
// kind.
type CodeAddressContext struct{}

// FrameAddress implements AddressContext.
func (CodeAddressContext) FrameAddress(call *CallParams, caller common.Address) common.Address {
	if call.To == nil {
		return common.Address{}
	}

	return *call.To
}

// StorageAddressContext follows EVM storage semantics: DELEGATECALL and
// CALLCODE run the callee's code in the caller's context.
type StorageAddressContext struct{}

// FrameAddress implements AddressContext.
func (StorageAddressContext) FrameAddress(call *CallParams, caller common.Address) common.Address {
	switch call.Kind {
	case OpDELEGATECALL, OpCALLCODE:
		return caller
	}

	if call.To == nil {
		return common.Address{}
	}

	return *call.To
}

// CreateSite is what a resolver may inspect to find a created address.
type CreateSite struct {
	Call     *CallParams
	Creator  common.Address
	Boundary *execution.StructLog
}

// CreateAddressResolver resolves the address of a contract created by
// CREATE or CREATE2. It returns false when the address is unknown.
type CreateAddressResolver interface {
	CreatedAddress(site CreateSite) (common.Address, bool)
}

// StackCreateAddresses reads the address pushed by CREATE/CREATE2, visible on
// top of the stack at the return boundary. A zero word means the creation
// failed.
type StackCreateAddresses struct{}

// CreatedAddress implements CreateAddressResolver.
func (StackCreateAddresses) CreatedAddress(site CreateSite) (common.Address, bool) {
	if site.Boundary == nil {
		return common.Address{}, false
	}

	word, ok := site.Boundary.StackTop(0)
	if !ok {
		return common.Address{}, false
	}

	addr, err := ParseAddress(word)
	if err != nil || addr == (common.Address{}) {
		return common.Address{}, false
	}

	return addr, true
}

// DerivedCreateAddresses derives CREATE2 addresses from creator, salt and init
// code of a successful creation. CREATE depends on the creator nonce, which the step log lacks, so it
// falls back to the stack.
type DerivedCreateAddresses struct{}

// CreatedAddress implements CreateAddressResolver.
func (DerivedCreateAddresses) CreatedAddress(site CreateSite) (common.Address, bool) {
	if !site.Call.Success {
		return common.Address{}, false
	}

	if site.Call.Kind == OpCREATE2 && site.Call.Salt != nil {
		return crypto.CreateAddress2(site.Creator, *site.Call.Salt, crypto.Keccak256(site.Call.Input)), true
	}

	return StackCreateAddresses{}.CreatedAddress(site)
}
