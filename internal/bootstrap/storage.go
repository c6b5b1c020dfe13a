package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/mmk-console/config"
	"github.com/target/mmk-console/internal/adapters/filestore"
	"github.com/target/mmk-console/internal/adapters/memstore"
	redisadapter "github.com/target/mmk-console/internal/adapters/redis"
	"github.com/target/mmk-console/internal/ports"
)

const redisPingTimeout = 5 * time.Second

// StorageOptions groups configuration for OpenStorage.
type StorageOptions struct {
	Storage config.StorageConfig
	Redis   config.RedisConfig
	Logger  *slog.Logger
}

// OpenStorage returns the durable session store selected by configuration and a func
// releasing its resources.
func OpenStorage(opts StorageOptions) (ports.KeyValueStore, func() error, error) {
	noop := func() error { return nil }

	switch opts.Storage.Backend {
	case config.StorageBackendMemory:
		return memstore.New(nil), noop, nil
	case config.StorageBackendRedis:
		client, err := ConnectRedis(opts.Redis, opts.Logger)
		if err != nil {
			return nil, nil, err
		}
		return redisadapter.NewKVStoreWithPrefix(client, opts.Storage.KeyPrefix), client.Close, nil
	case config.StorageBackendFile, "":
		store, err := filestore.New(opts.Storage.FilePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open session file: %w", err)
		}
		return store, noop, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage backend %q", opts.Storage.Backend)
	}
}

// ConnectRedis builds a direct, sentinel, or cluster client from cfg and pings it.
//
//nolint:ireturn // the topology is chosen at runtime
func ConnectRedis(cfg config.RedisConfig, logger *slog.Logger) (redis.UniversalClient, error) {
	topology, opts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}

	var client redis.UniversalClient
	switch topology {
	case "cluster":
		client = redis.NewClusterClient(opts.Cluster())
	case "sentinel":
		client = redis.NewFailoverClient(opts.Failover())
	default:
		client = redis.NewClient(opts.Simple())
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if pingErr := client.Ping(ctx).Err(); pingErr != nil {
		if closeErr := client.Close(); closeErr != nil {
			pingErr = errors.Join(pingErr, fmt.Errorf("close redis client: %w", closeErr))
		}
		return nil, fmt.Errorf("ping redis (%s): %w", topology, pingErr)
	}

	if logger != nil {
		logger.Debug("redis connected", "topology", topology, "addrs", strings.Join(opts.Addrs, ","))
	}
	return client, nil
}

// redisOptions resolves cfg into a topology name and universal options. The URI may be
// a bare host:port or a redis:// / rediss:// URL; URL credentials win over Password.
func redisOptions(cfg config.RedisConfig) (string, *redis.UniversalOptions, error) {
	switch {
	case cfg.UseSentinel:
		nodes := trimAddrs(cfg.SentinelNodes)
		if len(nodes) == 0 {
			return "", nil, errors.New("redis sentinel requires at least one sentinel node")
		}
		return "sentinel", &redis.UniversalOptions{
			Addrs:            nodes,
			MasterName:       cfg.SentinelMasterName,
			Password:         cfg.Password,
			SentinelPassword: cfg.SentinelPassword,
		}, nil

	case cfg.UseCluster:
		opts, err := uriOptions(cfg)
		if err != nil {
			return "", nil, err
		}
		if nodes := trimAddrs(cfg.ClusterNodes); len(nodes) > 0 {
			opts.Addrs = nodes
		}
		if len(opts.Addrs) == 0 {
			return "", nil, errors.New("redis cluster requires at least one address")
		}
		return "cluster", opts, nil

	default:
		opts, err := uriOptions(cfg)
		if err != nil {
			return "", nil, err
		}
		if len(opts.Addrs) == 0 {
			return "", nil, errors.New("redis requires a URI")
		}
		return "direct", opts, nil
	}
}

func uriOptions(cfg config.RedisConfig) (*redis.UniversalOptions, error) {
	uri := strings.TrimSpace(cfg.URI)
	opts := &redis.UniversalOptions{Password: cfg.Password}
	if uri == "" {
		return opts, nil
	}
	if !strings.HasPrefix(uri, "redis://") && !strings.HasPrefix(uri, "rediss://") {
		opts.Addrs = []string{uri}
		return opts, nil
	}

	parsed, err := redis.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.Addrs = []string{parsed.Addr}
	opts.Username = parsed.Username
	if parsed.Password != "" {
		opts.Password = parsed.Password
	}
	opts.DB = parsed.DB
	opts.TLSConfig = parsed.TLSConfig
	return opts, nil
}

func trimAddrs(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, addr := range raw {
		if a := strings.TrimSpace(addr); a != "" {
			out = append(out, a)
		}
	}
	return out
}
