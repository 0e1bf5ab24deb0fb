package nametag

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	pcommon "github.com/ethpandaops/structlog-decoder/pkg/common"
)

// Resolver names an address. An empty name with a nil error means the
// resolver has nothing for it.
type Resolver interface {
	Name() string
	Resolve(ctx context.Context, addr common.Address) (string, error)
}

var precompileNames = map[common.Address]string{
	common.BytesToAddress([]byte{0x01}): "ecrecover",
	common.BytesToAddress([]byte{0x02}): "sha256",
	common.BytesToAddress([]byte{0x03}): "ripemd160",
	common.BytesToAddress([]byte{0x04}): "identity",
	common.BytesToAddress([]byte{0x05}): "modexp",
	common.BytesToAddress([]byte{0x06}): "ecadd",
	common.BytesToAddress([]byte{0x07}): "ecmul",
	common.BytesToAddress([]byte{0x08}): "ecpairing",
	common.BytesToAddress([]byte{0x09}): "blake2f",
	common.BytesToAddress([]byte{0x0a}): "pointevaluation",
}

// Precompiles names the precompiled contracts 0x01 to 0x0a.
type Precompiles struct{}

func (Precompiles) Name() string { return "precompiles" }

func (Precompiles) Resolve(_ context.Context, addr common.Address) (string, error) {
	return precompileNames[addr], nil
}

// Cached remembers the results of an expensive resolver in cache, including
// misses which are stored as Unknown.
type Cached struct {
	Resolver Resolver
	Cache    *Cache
}

func (c *Cached) Name() string { return c.Resolver.Name() }

func (c *Cached) Resolve(ctx context.Context, addr common.Address) (string, error) {
	if name, ok := c.Cache.Get(addr); ok {
		pcommon.NameResolutions.WithLabelValues(c.Name(), "cache_hit").Inc()

		if name == Unknown {
			return "", nil
		}

		return name, nil
	}

	name, err := c.Resolver.Resolve(ctx, addr)
	if err != nil {
		return "", err
	}

	if name == "" {
		c.Cache.Set(addr, Unknown)
	} else {
		c.Cache.Set(addr, name)
	}

	return name, nil
}

// Chain asks each resolver in turn and returns the first name found. A failing
// resolver is logged and skipped.
type Chain struct {
	log       logrus.FieldLogger
	resolvers []Resolver
}

func NewChain(log logrus.FieldLogger, resolvers ...Resolver) *Chain {
	return &Chain{
		log:       log.WithField("component", "nametag_chain"),
		resolvers: resolvers,
	}
}

func (c *Chain) Name() string { return "chain" }

func (c *Chain) Resolve(ctx context.Context, addr common.Address) (string, error) {
	for _, r := range c.resolvers {
		name, err := r.Resolve(ctx, addr)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return "", err
			}

			pcommon.NameResolutions.WithLabelValues(r.Name(), "error").Inc()

			c.log.WithError(err).WithFields(logrus.Fields{
				"resolver": r.Name(),
				"address":  addr.Hex(),
			}).Debug("Name resolver failed")

			continue
		}

		if name != "" {
			pcommon.NameResolutions.WithLabelValues(r.Name(), "found").Inc()

			return name, nil
		}

		pcommon.NameResolutions.WithLabelValues(r.Name(), "miss").Inc()
	}

	return "", nil
}
