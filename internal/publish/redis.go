// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package publish mirrors decoded VE.Direct readings into Redis.
//
// Every reading updates one field of the session hash <prefix>:<session> and
// is announced as JSON on the channel <prefix>:updates. Writes happen on a
// worker goroutine so a slow or absent Redis never stalls the poll loop.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/Thermoquad/vedirect/internal/config"
	"github.com/Thermoquad/vedirect/pkg/vedirect"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// QueueSize bounds readings waiting for the worker
const QueueSize = 256

// Store is the subset of the Redis client used by the mirror
type Store interface {
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Update is the message announced for every reading
type Update struct {
	Session string      `json:"session"`
	Key     string      `json:"key"`
	Value   interface{} `json:"value"`
	Unit    string      `json:"unit,omitempty"`
	Time    time.Time   `json:"time"`
}

// Mirror copies readings into Redis
type Mirror struct {
	store   Store
	session uuid.UUID
	key     string
	channel string
	timeout time.Duration
	log     zerolog.Logger
	queue   chan Update

	mu      sync.Mutex
	written uint64
	dropped uint64
	failed  uint64
}

// NewMirror creates a mirror for one telemetry session
func NewMirror(store Store, prefix string, session uuid.UUID, log zerolog.Logger) *Mirror {
	if prefix == "" {
		prefix = "vedirect"
	}
	return &Mirror{
		store:   store,
		session: session,
		key:     prefix + ":" + session.String(),
		channel: prefix + ":updates",
		timeout: 2 * time.Second,
		log:     log.With().Str("component", "redis").Logger(),
		queue:   make(chan Update, QueueSize),
	}
}

// Key returns the session hash key
func (m *Mirror) Key() string { return m.key }

// Channel returns the pub/sub channel name
func (m *Mirror) Channel() string { return m.channel }

// Publish queues a reading. It never blocks; when the queue is full the
// reading is dropped and counted.
func (m *Mirror) Publish(r vedirect.Reading) {
	u := Update{
		Session: m.session.String(),
		Key:     r.Output.Key(),
		Value:   r.Value(),
		Unit:    r.Output.Unit(),
		Time:    time.Now(),
	}
	select {
	case m.queue <- u:
	default:
		m.mu.Lock()
		m.dropped++
		m.mu.Unlock()
	}
}

// Run writes queued readings until ctx is cancelled
func (m *Mirror) Run(ctx context.Context) error {
	if err := m.announce(ctx); err != nil {
		m.log.Warn().Err(err).Msg("Failed to record session start")
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u := <-m.queue:
			m.write(ctx, u)
		}
	}
}

func (m *Mirror) announce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return m.store.HSet(ctx, m.key, "session", m.session.String(), "started", time.Now().UTC().Format(time.RFC3339)).Err()
}

func (m *Mirror) write(ctx context.Context, u Update) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := m.store.HSet(ctx, m.key, u.Key, formatValue(u.Value)).Err(); err != nil {
		m.fail(u, "hset", err)
		return
	}

	payload, err := json.Marshal(u)
	if err != nil {
		m.fail(u, "marshal", err)
		return
	}
	if err := m.store.Publish(ctx, m.channel, payload).Err(); err != nil {
		m.fail(u, "publish", err)
		return
	}

	m.mu.Lock()
	m.written++
	m.mu.Unlock()
}

func (m *Mirror) fail(u Update, op string, err error) {
	m.mu.Lock()
	m.failed++
	m.mu.Unlock()
	m.log.Error().Err(err).Str("op", op).Str("output", u.Key).Msg("Redis write failed")
}

// Stats returns the written, dropped and failed counts
func (m *Mirror) Stats() (written, dropped, failed uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.written, m.dropped, m.failed
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

// NewClient connects to Redis and verifies the connection with a ping
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Address,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Address, err)
	}
	return client, nil
}
