package nametag

import (
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	StoreFile  = "file"
	StoreRedis = "redis"
	StoreNone  = "none"
)

type Config struct {
	// Tags are static names keyed by hex address.
	Tags map[string]string `yaml:"tags"`
	// Store selects where resolved names are cached: file, redis or none.
	Store string `yaml:"store" default:"file"`
	// FilePath is the cache file used by the file store.
	FilePath string `yaml:"filePath" default:".structlog-decoder/nametags.yaml"`
	// FlushInterval is how often a long running server saves the cache.
	FlushInterval time.Duration `yaml:"flushInterval" default:"1m"`
	// Concurrency bounds parallel lookups per trace.
	Concurrency int `yaml:"concurrency" default:"8"`
	// LookupContracts enables symbol()/name() lookups over RPC.
	LookupContracts bool `yaml:"lookupContracts" default:"true"`
	// ArtifactsDir holds compiled contract artifacts to match bytecode against.
	ArtifactsDir string `yaml:"artifactsDir"`
}

func (c *Config) Validate() error {
	switch c.Store {
	case StoreFile:
		if c.FilePath == "" {
			return errors.New("filePath is required for the file store")
		}
	case StoreRedis, StoreNone:
	default:
		return fmt.Errorf("invalid name tag store %q", c.Store)
	}

	if c.Concurrency <= 0 {
		return errors.New("concurrency must be positive")
	}

	if c.FlushInterval <= 0 {
		return errors.New("flushInterval must be positive")
	}

	return nil
}

// ChainCaller is what the RPC backed resolvers need from the execution layer.
type ChainCaller interface {
	ContractCaller
	CodeReader
}

// Setup builds the resolver chain and its cache. caller may be nil when no
// node is configured; redisClient is only used by the redis store.
func Setup(log logrus.FieldLogger, conf *Config, caller ChainCaller, redisClient *redis.Client, redisPrefix string) (*Chain, *Cache, error) {
	var store Store

	switch conf.Store {
	case StoreFile:
		store = NewFileStore(conf.FilePath)
	case StoreRedis:
		if redisClient == nil {
			return nil, nil, errors.New("redis store selected without a redis client")
		}

		store = NewRedisStore(redisClient, redisPrefix)
	}

	cache := NewCache(log, store)

	tags, err := NewTags(conf.Tags)
	if err != nil {
		return nil, nil, err
	}

	resolvers := []Resolver{tags, Precompiles{}}

	if caller != nil && conf.LookupContracts {
		resolvers = append(resolvers, &Cached{Resolver: NewContractNames(caller), Cache: cache})
	}

	if caller != nil && conf.ArtifactsDir != "" {
		artifacts, err := LoadArtifacts(conf.ArtifactsDir)
		if err != nil {
			return nil, nil, err
		}

		r, err := NewArtifacts(log, caller, artifacts)
		if err != nil {
			return nil, nil, err
		}

		log.WithField("artifacts", len(artifacts)).Info("Loaded contract artifacts")

		resolvers = append(resolvers, r)
	}

	return NewChain(log, resolvers...), cache, nil
}
