package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("kvstore")

// Value is a typed, fail-soft view of one key.
//
// The in-memory copy is authoritative for readers: Set updates it even when
// the write to the backend fails, so callers stay consistent within a
// process. Backend or decoding errors are logged and never returned.
type Value[T any] struct {
	mu      sync.RWMutex
	backend Backend
	key     string
	def     T
	current T
	logger  *zap.Logger
}

// NewValue binds key on backend and loads its current value, falling back to def.
func NewValue[T any](ctx context.Context, backend Backend, key string, def T, logger *zap.Logger) *Value[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := &Value[T]{
		backend: backend,
		key:     key,
		def:     def,
		current: def,
		logger:  logger.With(zap.String("key", key)),
	}
	v.current = v.load(ctx)
	return v
}

// Key returns the storage key.
func (v *Value[T]) Key() string { return v.key }

// Get returns the in-memory value.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

// Set replaces the value and persists it.
func (v *Value[T]) Set(ctx context.Context, val T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current = val
	v.persist(ctx, val)
}

// Update applies fn to the current value under the write lock and persists
// the result, which it also returns.
func (v *Value[T]) Update(ctx context.Context, fn func(T) T) T {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current = fn(v.current)
	v.persist(ctx, v.current)
	return v.current
}

// Delete removes the persisted value and resets the in-memory value to the default.
func (v *Value[T]) Delete(ctx context.Context) {
	v.mu.Lock()
	defer v.mu.Unlock()

	ctx, span := tracer.Start(ctx, "kvstore.delete")
	defer span.End()
	span.SetAttributes(attribute.String("kv.key", v.key))

	v.current = v.def
	if err := v.backend.Remove(ctx, v.key); err != nil {
		span.RecordError(err)
		v.logger.Warn("failed to delete value", zap.Error(err))
	}
}

// Reload re-reads the value from the backend.
func (v *Value[T]) Reload(ctx context.Context) T {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current = v.load(ctx)
	return v.current
}

func (v *Value[T]) load(ctx context.Context) T {
	ctx, span := tracer.Start(ctx, "kvstore.load")
	defer span.End()
	span.SetAttributes(attribute.String("kv.key", v.key))

	data, err := v.backend.Load(ctx, v.key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			span.RecordError(err)
			v.logger.Warn("failed to load value, using default", zap.Error(err))
		}
		return v.def
	}

	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		span.RecordError(err)
		v.logger.Warn("failed to decode stored value, using default", zap.Error(err))
		return v.def
	}
	return out
}

func (v *Value[T]) persist(ctx context.Context, val T) {
	ctx, span := tracer.Start(ctx, "kvstore.save")
	defer span.End()
	span.SetAttributes(attribute.String("kv.key", v.key))

	data, err := json.Marshal(val)
	if err != nil {
		span.RecordError(err)
		v.logger.Warn("failed to encode value", zap.Error(err))
		return
	}
	if err := v.backend.Save(ctx, v.key, data); err != nil {
		span.RecordError(err)
		v.logger.Warn("failed to save value", zap.Error(err))
	}
}
