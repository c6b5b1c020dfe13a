package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// StorageBackend selects where the durable session keys live.
type StorageBackend string

const (
	// StorageBackendFile keeps keys in a JSON file on local disk.
	StorageBackendFile StorageBackend = "file"
	// StorageBackendMemory keeps keys in process memory (tests, one-shot scripts).
	StorageBackendMemory StorageBackend = "memory"
	// StorageBackendRedis keeps keys in Redis so several console processes share a session.
	StorageBackendRedis StorageBackend = "redis"
)

// UnmarshalText implements encoding.TextUnmarshaler for StorageBackend.
func (b *StorageBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "file", "memory", "redis":
		*b = StorageBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid StorageBackend: %q (valid options: file, memory, redis)", v)
	}
}

// StorageConfig groups durable session storage configuration.
type StorageConfig struct {
	// Backend determines which storage adapter is used.
	Backend StorageBackend `env:"STORAGE_BACKEND" envDefault:"file"`

	// FilePath is the session file used when Backend=file.
	// Defaults to <user config dir>/mmk-console/session.json.
	FilePath string `env:"STORAGE_FILE_PATH"`

	// KeyPrefix namespaces keys when Backend=redis.
	KeyPrefix string `env:"STORAGE_KEY_PREFIX" envDefault:"mmk-console:"`
}

// Sanitize fills in the default session file location.
func (s *StorageConfig) Sanitize() {
	if s.Backend == "" {
		s.Backend = StorageBackendFile
	}
	s.FilePath = strings.TrimSpace(s.FilePath)
	if s.FilePath == "" {
		s.FilePath = defaultSessionFile()
	}
}

func defaultSessionFile() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, "mmk-console", "session.json")
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".mmk-console", "session.json")
	}
	return filepath.Join(os.TempDir(), "mmk-console", "session.json")
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
}
