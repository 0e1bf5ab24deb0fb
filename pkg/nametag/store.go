package nametag

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// Store persists the resolved-name cache between runs.
type Store interface {
	Name() string
	Load(ctx context.Context) (map[string]string, error)
	Save(ctx context.Context, names map[string]string) error
}

// FileStore keeps the cache in a YAML file.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Name() string { return "file" }

// Load returns an empty map when the file does not exist yet.
func (s *FileStore) Load(_ context.Context) (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}

		return nil, fmt.Errorf("failed to read name cache: %w", err)
	}

	names := map[string]string{}
	if err := yaml.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("failed to parse name cache %s: %w", s.path, err)
	}

	return names, nil
}

// Save writes to a temporary file first so a crash never leaves a torn cache.
func (s *FileStore) Save(_ context.Context, names map[string]string) error {
	data, err := yaml.Marshal(names)
	if err != nil {
		return fmt.Errorf("failed to encode name cache: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create name cache directory: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write name cache: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace name cache: %w", err)
	}

	return nil
}

// RedisStore keeps the cache in a single redis hash so several decoder
// instances can share it.
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{
		client: client,
		key:    fmt.Sprintf("%s:nametags", prefix),
	}
}

func (s *RedisStore) Name() string { return "redis" }

func (s *RedisStore) Load(ctx context.Context) (map[string]string, error) {
	names, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load name cache from redis: %w", err)
	}

	return names, nil
}

func (s *RedisStore) Save(ctx context.Context, names map[string]string) error {
	if len(names) == 0 {
		return nil
	}

	values := make(map[string]any, len(names))
	for k, v := range names {
		values[k] = v
	}

	if err := s.client.HSet(ctx, s.key, values).Err(); err != nil {
		return fmt.Errorf("failed to save name cache to redis: %w", err)
	}

	return nil
}
