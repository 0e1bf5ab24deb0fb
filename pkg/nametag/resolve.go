package nametag

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/ethpandaops/structlog-decoder/pkg/decoder"
)

// DefaultConcurrency bounds parallel lookups when none is configured.
const DefaultConcurrency = 8

// Names maps addresses to resolved names. Addresses without a name are absent.
type Names map[common.Address]string

// ResolveAddresses names every address with at most concurrency lookups in
// flight. The first resolver error aborts the rest.
func ResolveAddresses(ctx context.Context, r Resolver, addrs []common.Address, concurrency int) (Names, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	var (
		mu    sync.Mutex
		names = make(Names, len(addrs))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, addr := range addrs {
		g.Go(func() error {
			name, err := r.Resolve(gctx, addr)
			if err != nil {
				return err
			}

			if name == "" {
				return nil
			}

			mu.Lock()
			names[addr] = name
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return names, nil
}

// ResolveTree names the addresses referenced by a decoded tree.
func ResolveTree(ctx context.Context, r Resolver, tree *decoder.Tree, concurrency int) (Names, error) {
	return ResolveAddresses(ctx, r, tree.Addresses(), concurrency)
}
