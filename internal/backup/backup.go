// Package backup takes encrypted snapshots of the SQLite ledger and ships
// them to S3-compatible storage.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "modernc.org/sqlite"

	"github.com/muflih795/YBG-Database-3/internal/model"
	"github.com/muflih795/YBG-Database-3/internal/store"
)

var (
	ErrDisabled       = errors.New("backup not configured")
	ErrBackupNotFound = errors.New("backup not found")
	ErrInProgress     = errors.New("backup already running")
)

// s3Client is the part of *s3.Client the manager uses.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

type Config struct {
	S3         S3Config
	Passphrase string
	Prefix     string
	Interval   time.Duration
	Retention  time.Duration
}

func (c Config) enabled() bool {
	return c.S3.Bucket != "" && c.Passphrase != ""
}

type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	Error      string     `json:"error,omitempty"`
}

type Manager struct {
	mu     sync.RWMutex
	cfg    Config
	status Status
	now    func() time.Time

	db     *sql.DB
	log    *store.BackupLog
	client s3Client
	logger *slog.Logger

	running sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewManager returns a manager in StateDisabled unless both a bucket and a
// passphrase are configured.
func NewManager(cfg Config, db *sql.DB, log *store.BackupLog, logger *slog.Logger) *Manager {
	m := &Manager{
		cfg:    cfg,
		db:     db,
		log:    log,
		logger: logger.With("component", "backup"),
		now:    time.Now,
		status: Status{State: StateDisabled},
	}
	if cfg.enabled() {
		m.client = newS3Client(cfg.S3)
		m.status.State = StateIdle
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Start runs a backup every Interval until ctx is cancelled or Stop is called.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.status.State == StateDisabled || m.cancel != nil {
		m.mu.Unlock()
		return
	}
	interval := m.cfg.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.scheduled(ctx)
			}
		}
	}()
}

func (m *Manager) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	if s.LastBackup == nil {
		s.LastBackup = m.status.LastBackup
	}
	m.status = s
	m.mu.Unlock()
}

func (m *Manager) scheduled(ctx context.Context) {
	if _, err := m.RunNow(ctx); err != nil {
		m.logger.Error("scheduled backup failed", "error", err)
		return
	}
	if m.cfg.Retention > 0 {
		if err := m.Cleanup(ctx, m.cfg.Retention); err != nil {
			m.logger.Error("backup cleanup failed", "error", err)
		}
	}
}

// List returns recent backup records, newest first.
func (m *Manager) List(ctx context.Context, limit int) ([]model.Backup, error) {
	return m.log.List(ctx, limit)
}

// RunNow snapshots the database with VACUUM INTO, encrypts the copy and
// uploads it. Only one run happens at a time.
func (m *Manager) RunNow(ctx context.Context) (*model.Backup, error) {
	if m.client == nil {
		return nil, ErrDisabled
	}
	if !m.running.TryLock() {
		return nil, ErrInProgress
	}
	defer m.running.Unlock()

	m.setStatus(Status{State: StateRunning})
	started := m.now().UTC()
	filename := fmt.Sprintf("ybg-%s.db.enc", started.Format("2006-01-02T150405Z"))
	key := filename
	if m.cfg.Prefix != "" {
		key = strings.TrimSuffix(m.cfg.Prefix, "/") + "/" + filename
	}

	record, err := m.log.Create(ctx, filename, key, started)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return nil, fmt.Errorf("create backup record: %w", err)
	}

	size, err := m.upload(ctx, record)
	if err != nil {
		if uerr := m.log.UpdateStatus(ctx, record.ID, model.BackupStatusFailed, err.Error()); uerr != nil {
			m.logger.Error("record backup failure", "id", record.ID, "error", uerr)
		}
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return nil, err
	}

	completed := m.now().UTC()
	if err := m.log.UpdateCompleted(ctx, record.ID, size, completed); err != nil {
		return nil, err
	}
	record.Status = model.BackupStatusCompleted
	record.SizeBytes = size
	record.CompletedAt = &completed

	m.setStatus(Status{State: StateIdle, LastBackup: &completed})
	m.logger.Info("backup uploaded", "id", record.ID, "key", key, "bytes", size)
	return record, nil
}

func (m *Manager) upload(ctx context.Context, record *model.Backup) (int64, error) {
	if err := m.log.UpdateStatus(ctx, record.ID, model.BackupStatusUploading, ""); err != nil {
		return 0, err
	}

	dir, err := os.MkdirTemp("", "ybg-backup-")
	if err != nil {
		return 0, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	snapshot := filepath.Join(dir, "ybg.db")
	if err := snapshotTo(ctx, m.db, snapshot); err != nil {
		return 0, err
	}
	plaintext, err := os.ReadFile(snapshot)
	if err != nil {
		return 0, fmt.Errorf("read snapshot: %w", err)
	}
	sealed, err := Seal(plaintext, m.cfg.Passphrase)
	if err != nil {
		return 0, fmt.Errorf("encrypt: %w", err)
	}

	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.cfg.S3.Bucket),
		Key:           aws.String(record.S3Key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
	})
	if err != nil {
		return 0, fmt.Errorf("upload to s3: %w", err)
	}
	return int64(len(sealed)), nil
}

// snapshotTo writes a consistent copy of the live database to path.
func snapshotTo(ctx context.Context, db *sql.DB, path string) error {
	quoted := "'" + strings.ReplaceAll(path, "'", "''") + "'"
	if _, err := db.ExecContext(ctx, "VACUUM INTO "+quoted); err != nil {
		return fmt.Errorf("vacuum into: %w", err)
	}
	return nil
}

// Restore downloads and decrypts a backup into dstPath and checks it with
// PRAGMA integrity_check. It never touches the live database; swapping the
// file in is an operator step.
func (m *Manager) Restore(ctx context.Context, id int64, dstPath string) error {
	if m.client == nil {
		return ErrDisabled
	}
	record, err := m.log.Get(ctx, id)
	if err != nil {
		return err
	}
	if record == nil {
		return ErrBackupNotFound
	}

	result, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.cfg.S3.Bucket),
		Key:    aws.String(record.S3Key),
	})
	if err != nil {
		return fmt.Errorf("download from s3: %w", err)
	}
	defer result.Body.Close()

	sealed, err := io.ReadAll(result.Body)
	if err != nil {
		return fmt.Errorf("read download: %w", err)
	}
	plaintext, err := Open(sealed, m.cfg.Passphrase)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dstPath, plaintext, 0600); err != nil {
		return fmt.Errorf("write restored db: %w", err)
	}
	return checkIntegrity(ctx, dstPath)
}

func checkIntegrity(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

// Cleanup deletes backups older than the retention window from both the log
// and the bucket. Object deletion failures are logged and skipped.
func (m *Manager) Cleanup(ctx context.Context, retention time.Duration) error {
	if m.client == nil {
		return nil
	}

	keys, err := m.log.DeleteOlderThan(ctx, m.now().Add(-retention))
	if err != nil {
		return err
	}
	for _, key := range keys {
		if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.cfg.S3.Bucket),
			Key:    aws.String(key),
		}); err != nil {
			m.logger.Warn("delete backup object", "key", key, "error", err)
		}
	}
	return nil
}
