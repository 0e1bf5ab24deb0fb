package nametag

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

const tagSeparator = " / "

// Tags is a set of user supplied names keyed by address. It is safe for
// concurrent use.
type Tags struct {
	mu   sync.RWMutex
	tags map[common.Address]string
}

// NewTags builds a tag set from hex address keys.
func NewTags(static map[string]string) (*Tags, error) {
	t := &Tags{tags: make(map[common.Address]string, len(static))}

	for key, name := range static {
		if !common.IsHexAddress(key) {
			return nil, fmt.Errorf("invalid name tag address %q", key)
		}

		t.Add(common.HexToAddress(key), name)
	}

	return t, nil
}

// Add tags addr with name. A name added to an address that already carries a
// different one is prepended, "new / old".
func (t *Tags) Add(addr common.Address, name string) {
	if name == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	existing, ok := t.tags[addr]
	if !ok || existing == "" {
		t.tags[addr] = name

		return
	}

	if slices.Contains(strings.Split(existing, tagSeparator), name) {
		return
	}

	t.tags[addr] = name + tagSeparator + existing
}

func (t *Tags) Get(addr common.Address) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	name, ok := t.tags[addr]

	return name, ok
}

func (t *Tags) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.tags)
}

func (t *Tags) Name() string { return "tags" }

func (t *Tags) Resolve(_ context.Context, addr common.Address) (string, error) {
	name, _ := t.Get(addr)

	return name, nil
}
