// Package portal mirrors issue display status back to the legacy citizen
// portal database so the original report page shows progress. The mirror is
// strictly best effort: a failure is logged and counted, never surfaced to
// the lifecycle transition that triggered it.
package portal

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server driver

	"github.com/civic-gov/platform/internal/issue/domain"
	"github.com/civic-gov/platform/internal/shared/config"
)

// Mirror pushes display-status updates into the portal's SQL Server
type Mirror struct {
	db      *sql.DB
	cfg     config.PortalConfig
	table   string
	running bool
	mu      sync.RWMutex

	onFailure func() // metrics hook, optional
}

// NewMirror creates a portal mirror. Call Start before use.
func NewMirror(cfg config.PortalConfig) *Mirror {
	return &Mirror{
		cfg:   cfg,
		table: "dbo.CitizenPosts",
	}
}

// OnFailure registers a hook invoked once per failed mirror attempt
func (m *Mirror) OnFailure(hook func()) {
	m.onFailure = hook
}

// Start opens the SQL Server connection and verifies it
func (m *Mirror) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.cfg.Enabled {
		return nil
	}
	if m.running {
		return fmt.Errorf("portal mirror already running")
	}

	connStr := fmt.Sprintf("server=%s;port=%d;database=%s;user id=%s;password=%s",
		m.cfg.Host, m.cfg.Port, m.cfg.Database, m.cfg.User, m.cfg.Password)

	db, err := sql.Open("sqlserver", connStr)
	if err != nil {
		return fmt.Errorf("failed to open portal database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping portal database: %w", err)
	}

	m.db = db
	m.running = true
	return nil
}

// Stop closes the connection
func (m *Mirror) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false
	return m.db.Close()
}

// Enabled reports whether the mirror is configured and connected
func (m *Mirror) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Health checks portal database connectivity
func (m *Mirror) Health(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.running {
		return fmt.Errorf("portal mirror not running")
	}
	return m.db.PingContext(ctx)
}

// MirrorStatus writes the issue's display status onto the originating
// citizen post. Never returns a caller-visible error: a missing post or a
// write failure is logged and swallowed so the lifecycle transition that
// triggered the mirror stays committed.
func (m *Mirror) MirrorStatus(ctx context.Context, postID string, status domain.DisplayStatus) {
	if postID == "" || !m.Enabled() {
		return
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET Status = @status, StatusUpdatedAt = @updatedAt
		WHERE PostID = @postID`, m.table)

	result, err := m.db.ExecContext(ctx, query,
		sql.Named("status", string(status)),
		sql.Named("updatedAt", time.Now()),
		sql.Named("postID", postID),
	)
	if err != nil {
		log.Printf("portal mirror: failed to update post %s: %v", postID, err)
		if m.onFailure != nil {
			m.onFailure()
		}
		return
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		log.Printf("portal mirror: post %s not found", postID)
		if m.onFailure != nil {
			m.onFailure()
		}
	}
}
