/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"                      // SQLite driver
	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
)

const trackingSchema = `
CREATE TABLE IF NOT EXISTS tracking (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	expires_at INTEGER NOT NULL DEFAULT 0
);`

// TrackingStore is the durable key/value substrate behind all round tracking.
// Values are opaque strings; a zero expires_at means the key never expires.
// Reads treat expired rows as absent and delete them lazily. There is no
// multi-key atomicity; callers read-modify-write and tolerate interleavings.
type TrackingStore struct {
	db       *sql.DB
	useTurso bool
	now      func() time.Time
}

// newTrackingStore connects to Turso when credentials are configured and
// falls back to a local sqlite file otherwise, matching the deployment
// story of a shared store with a single-node default.
func newTrackingStore(cfg *Config) (*TrackingStore, error) {
	var conn *sql.DB
	var err error
	var useTurso bool

	if cfg.tursoDatabase != "" && cfg.tursoToken != "" {
		connStr := cfg.tursoDatabase + "?authToken=" + cfg.tursoToken
		conn, err = sql.Open("libsql", connStr)
		if err == nil {
			if pingErr := conn.Ping(); pingErr == nil {
				useTurso = true
			} else {
				conn.Close()
				conn = nil
			}
		}
	}

	if conn == nil {
		if dir := filepath.Dir(cfg.dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}

		conn, err = sql.Open("sqlite3", cfg.dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		if err := conn.Ping(); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite database ping failed: %w", err)
		}
		useTurso = false
	}

	// Serialize writers; sqlite returns SQLITE_BUSY under concurrent
	// writes from a pooled *sql.DB otherwise.
	conn.SetMaxOpenConns(1)

	store := &TrackingStore{
		db:       conn,
		useTurso: useTurso,
		now:      time.Now,
	}
	if err := store.init(); err != nil {
		conn.Close()
		return nil, err
	}

	return store, nil
}

func (s *TrackingStore) init() error {
	_, err := s.db.Exec(trackingSchema)
	return err
}

// Close closes the underlying connection.
func (s *TrackingStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *TrackingStore) connectionInfo() string {
	if s.useTurso {
		return "turso"
	}
	return "sqlite"
}

// Get returns the value for key. The second return is false when the key is
// absent or expired.
func (s *TrackingStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	var expiresAt int64

	row := s.db.QueryRowContext(ctx, `SELECT value, expires_at FROM tracking WHERE key = ?`, key)
	err := row.Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	if expiresAt != 0 && expiresAt <= s.now().Unix() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM tracking WHERE key = ? AND expires_at = ?`, key, expiresAt)
		return "", false, nil
	}

	return value, true, nil
}

// Set overwrites the value for key. An existing expiry is preserved.
func (s *TrackingStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tracking (key, value, expires_at) VALUES (?, ?, 0)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	return err
}

// Delete removes key. Deleting an absent key is not an error.
func (s *TrackingStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tracking WHERE key = ?`, key)
	return err
}

// Expire sets or refreshes an absolute expiry ttl from now, after which
// reads of key return absent.
func (s *TrackingStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	deadline := s.now().Add(ttl).Unix()
	_, err := s.db.ExecContext(ctx, `UPDATE tracking SET expires_at = ? WHERE key = ?`, deadline, key)
	return err
}
