// Package cache provides pluggable stores for computed query embeddings,
// keyed by model and query batch. Backends cover a process-local LRU, a
// bbolt file for restarts, and Redis for sharing across instances.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrUnsupportedBackendType = errors.New("unsupported backend type")

type Cache interface {
	Get(ctx context.Context, key string) ([][]float32, bool, error)
	Put(ctx context.Context, key string, embeddings [][]float32) error
	Close() error
}

type BackendType string

const (
	BackendTypeMemory BackendType = "memory"
	BackendTypeBolt   BackendType = "bolt"
	BackendTypeRedis  BackendType = "redis"
)

type Config struct {
	Enabled    bool        `yaml:"enabled"`
	Backend    BackendType `yaml:"backend"`
	MaxEntries int         `yaml:"maxEntries"`
	TTL        Duration    `yaml:"ttl"`
	Path       string      `yaml:"path"`
	Redis      RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

func New(cfg Config) (Cache, error) {
	switch cfg.Backend {
	case BackendTypeMemory, "":
		return NewMemoryCache(cfg.MaxEntries, cfg.TTL.Duration()), nil

	case BackendTypeBolt:
		return NewBoltCache(cfg.Path)

	case BackendTypeRedis:
		return OpenRedisCache(cfg.Redis, cfg.TTL.Duration()), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackendType, cfg.Backend)
	}
}

// Key derives a stable cache key from the model name and the query batch.
// Each query is length-prefixed so that batch boundaries survive hashing.
func Key(model string, queries []string) string {
	h := sha256.New()
	h.Write([]byte(model))

	var prefix [4]byte
	for _, query := range queries {
		binary.BigEndian.PutUint32(prefix[:], uint32(len(query)))
		h.Write(prefix[:])
		h.Write([]byte(query))
	}

	return hex.EncodeToString(h.Sum(nil)[:16])
}

func marshalEmbeddings(embeddings [][]float32) ([]byte, error) {
	return json.Marshal(embeddings)
}

func unmarshalEmbeddings(data []byte) ([][]float32, error) {
	var embeddings [][]float32
	if err := json.Unmarshal(data, &embeddings); err != nil {
		return nil, err
	}

	return embeddings, nil
}

type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	str := d.Duration().String()
	return json.Marshal(str)
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	// Parse the string duration
	duration, err := time.ParseDuration(str)
	if err != nil {
		return err
	}

	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.Duration().String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var str string
	if err := value.Decode(&str); err != nil {
		return err
	}

	// Parse the string duration
	duration, err := time.ParseDuration(str)
	if err != nil {
		return err
	}

	*d = Duration(duration)
	return nil
}
