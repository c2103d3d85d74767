package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/mikey/llm-mail-triage/internal/core"
)

// MySQLCache is a MySQL implementation of the ClassificationCache port
type MySQLCache struct {
	db          *sql.DB
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewMySQLCache creates a new MySQL cache
func NewMySQLCache(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*MySQLCache, error) {
	// parseTime is required to scan TIMESTAMP columns into time.Time.
	if strings.Contains(dsn, "?") {
		dsn += "&parseTime=true"
	} else {
		dsn += "?parseTime=true"
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS triage_cache (
			digest VARCHAR(64) PRIMARY KEY,
			category VARCHAR(64),
			confidence DOUBLE,
			rationale TEXT,
			status VARCHAR(32),
			last_seen TIMESTAMP,
			expires_at TIMESTAMP,
			INDEX idx_triage_expires_at (expires_at)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	cache := &MySQLCache{
		db:          db,
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	if cleanupFreq > 0 {
		go cache.startCleanupTask()
	}

	return cache, nil
}

// Get retrieves a cached verdict for a content digest
func (c *MySQLCache) Get(ctx context.Context, digest string) (*core.CachedVerdict, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT digest, category, confidence, rationale, status, last_seen, expires_at
		FROM triage_cache WHERE digest = ?
	`, digest)

	var entry core.CachedVerdict
	var category, status string
	err := row.Scan(&entry.Digest, &category, &entry.Confidence, &entry.Rationale, &status, &entry.LastSeen, &entry.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}
	entry.Category = core.Category(category)
	entry.Status = core.ClassificationStatus(status)

	if time.Now().After(entry.ExpiresAt) {
		return nil, ErrExpired
	}

	return &entry, nil
}

// Set stores a verdict
func (c *MySQLCache) Set(ctx context.Context, verdict *core.CachedVerdict) error {
	_, err := c.db.ExecContext(ctx, `
		REPLACE INTO triage_cache
			(digest, category, confidence, rationale, status, last_seen, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, verdict.Digest, string(verdict.Category), verdict.Confidence, verdict.Rationale,
		string(verdict.Status), verdict.LastSeen, verdict.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// Delete removes a verdict
func (c *MySQLCache) Delete(ctx context.Context, digest string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM triage_cache WHERE digest = ?`, digest)
	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Cleanup removes expired verdicts
func (c *MySQLCache) Cleanup(ctx context.Context) error {
	result, err := c.db.ExecContext(ctx, `DELETE FROM triage_cache WHERE expires_at < ?`, time.Now())
	if err != nil {
		return fmt.Errorf("failed to clean up cache: %w", err)
	}

	if expired, err := result.RowsAffected(); err == nil {
		c.logger.Debug("Cleaned up expired cache entries", zap.Int64("expired_count", expired))
	}
	return nil
}

// startCleanupTask starts a background task to clean up expired entries
func (c *MySQLCache) startCleanupTask() {
	ticker := time.NewTicker(c.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.Cleanup(context.Background()); err != nil {
				c.logger.Error("Failed to clean up cache", zap.Error(err))
			}
		case <-c.stopCh:
			return
		}
	}
}

// Stop stops the background cleanup task and closes the database
func (c *MySQLCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close MySQL connection", zap.Error(err))
		}
	})
}
