package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/target/mmk-console/internal/ports"
)

// storageGuard wraps durable storage so its failures never reach callers. A failed
// read is treated as absent and a failed write as having had no durable effect.
type storageGuard struct {
	kv     ports.KeyValueStore
	logger *slog.Logger
}

func (g storageGuard) get(ctx context.Context, key string) (string, bool) {
	if g.kv == nil {
		return "", false
	}
	v, ok, err := g.kv.Get(ctx, key)
	if err != nil {
		g.logFailure(ctx, "storage read failed", key, err)
		return "", false
	}
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (g storageGuard) set(ctx context.Context, key, value string) {
	if g.kv == nil {
		return
	}
	if err := g.kv.Set(ctx, key, value); err != nil {
		g.logFailure(ctx, "storage write failed", key, err)
	}
}

func (g storageGuard) remove(ctx context.Context, key string) {
	if g.kv == nil {
		return
	}
	if err := g.kv.Remove(ctx, key); err != nil {
		g.logFailure(ctx, "storage remove failed", key, err)
	}
}

// logFailure reports an unreachable backing store at warn level. Other failures are
// per-key and stay at debug.
func (g storageGuard) logFailure(ctx context.Context, msg, key string, err error) {
	level := slog.LevelDebug
	if errors.Is(err, ports.ErrStorageUnavailable) {
		level = slog.LevelWarn
	}
	g.logger.Log(ctx, level, msg, "key", key, "error", err)
}
