// Package backup writes encrypted snapshots of the family store to
// S3-compatible storage or a local directory and restores them.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dukerupert/famsched/internal/store"
)

const (
	archiveVersion  = 1
	archiveSuffix   = ".json.enc"
	DefaultInterval = 24 * time.Hour
)

var (
	// ErrDisabled is returned when neither S3 nor a local directory is configured,
	// or when no passphrase is set.
	ErrDisabled = errors.New("backup not configured")
	// ErrNotFound is returned by Restore when the archive does not exist.
	ErrNotFound = errors.New("backup not found")
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

func (c S3Config) complete() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// Config holds backup manager configuration. S3 wins over LocalDir when both
// are set.
type Config struct {
	S3         S3Config
	LocalDir   string
	Prefix     string
	Passphrase string
	Interval   time.Duration
	Retention  time.Duration
}

// State represents the backup manager state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

// Status holds the current backup manager status.
type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	LastKey    string     `json:"last_key,omitempty"`
	Error      string     `json:"error,omitempty"`
	InProgress bool       `json:"in_progress"`
}

// StatusCallback is called whenever the backup state changes.
type StatusCallback func(Status)

// Entry describes one stored archive.
type Entry struct {
	Key      string    `json:"key"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

type archive struct {
	Version     int                                  `json:"version"`
	CreatedAt   time.Time                            `json:"created_at"`
	Collections map[store.Collection]json.RawMessage `json:"collections"`
}

// Manager snapshots a Store on an interval.
type Manager struct {
	mu       sync.RWMutex
	cfg      Config
	status   Status
	callback StatusCallback

	store  *store.Store
	client s3Client
	logger *slog.Logger
	now    func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a new backup manager.
func NewManager(cfg Config, st *store.Store, logger *slog.Logger, callback StatusCallback) *Manager {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	m := &Manager{
		cfg:      cfg,
		store:    st,
		logger:   logger,
		callback: callback,
		now:      time.Now,
		status:   Status{State: StateDisabled},
	}
	if cfg.Passphrase != "" {
		if cfg.S3.complete() {
			m.client = newS3Client(cfg.S3)
			m.status.State = StateIdle
		} else if cfg.LocalDir != "" {
			m.status.State = StateIdle
		}
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

// Enabled reports whether the manager has somewhere to write.
func (m *Manager) Enabled() bool {
	return m.Status().State != StateDisabled
}

// Start begins the scheduled backup loop.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.status.State == StateDisabled {
		m.mu.Unlock()
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	interval := m.cfg.Interval
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.tick(ctx)
			}
		}
	}()
}

// Stop gracefully stops the backup manager.
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

// Status returns the current backup status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
	if m.callback != nil {
		m.callback(s)
	}
}

func (m *Manager) tick(ctx context.Context) {
	if _, err := m.Run(ctx); err != nil {
		m.logger.Error("scheduled backup failed", "error", err)
		return
	}
	if m.cfg.Retention <= 0 {
		return
	}
	n, err := m.Cleanup(ctx, m.now().Add(-m.cfg.Retention))
	if err != nil {
		m.logger.Error("backup cleanup failed", "error", err)
		return
	}
	if n > 0 {
		m.logger.Info("old backups removed", "count", n)
	}
}

// Run snapshots every collection, encrypts the result and stores it.
// It returns the key of the new archive.
func (m *Manager) Run(ctx context.Context) (string, error) {
	if !m.Enabled() {
		return "", ErrDisabled
	}
	prev := m.Status()
	m.setStatus(Status{State: StateRunning, InProgress: true, LastBackup: prev.LastBackup, LastKey: prev.LastKey})

	key, err := m.run(ctx)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error(), LastBackup: prev.LastBackup, LastKey: prev.LastKey})
		return "", err
	}

	now := m.now().UTC()
	m.setStatus(Status{State: StateIdle, LastBackup: &now, LastKey: key})
	m.logger.Info("backup written", "key", key)
	return key, nil
}

func (m *Manager) run(ctx context.Context) (string, error) {
	snap, err := m.store.Snapshot()
	if err != nil {
		return "", fmt.Errorf("snapshot store: %w", err)
	}

	created := m.now().UTC()
	plaintext, err := json.Marshal(archive{Version: archiveVersion, CreatedAt: created, Collections: snap})
	if err != nil {
		return "", fmt.Errorf("encode archive: %w", err)
	}

	sealed, err := Encrypt(plaintext, m.cfg.Passphrase)
	if err != nil {
		return "", fmt.Errorf("encrypt archive: %w", err)
	}

	key := m.cfg.Prefix + "famsched-" + created.Format("2006-01-02T150405.000Z") + archiveSuffix
	if err := m.put(ctx, key, sealed); err != nil {
		return "", err
	}
	return key, nil
}

// Restore fetches and decrypts the archive at key and writes every collection
// back through the store, so every context sees the restored state.
func (m *Manager) Restore(ctx context.Context, key string) error {
	if !m.Enabled() {
		return ErrDisabled
	}

	sealed, err := m.get(ctx, key)
	if err != nil {
		return err
	}

	plaintext, err := Decrypt(sealed, m.cfg.Passphrase)
	if err != nil {
		return fmt.Errorf("decrypt archive: %w", err)
	}

	var a archive
	if err := json.Unmarshal(plaintext, &a); err != nil {
		return fmt.Errorf("decode archive: %w", err)
	}
	if a.Version != archiveVersion {
		return fmt.Errorf("unsupported archive version %d", a.Version)
	}

	if err := m.store.Restore(a.Collections); err != nil {
		return fmt.Errorf("restore store: %w", err)
	}
	m.logger.Info("backup restored", "key", key, "created_at", a.CreatedAt)
	return nil
}

// List returns stored archives, newest first.
func (m *Manager) List(ctx context.Context) ([]Entry, error) {
	if !m.Enabled() {
		return nil, ErrDisabled
	}

	var entries []Entry
	if m.client != nil {
		var token *string
		for {
			out, err := m.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
				Bucket:            aws.String(m.cfg.S3.Bucket),
				Prefix:            aws.String(m.cfg.Prefix),
				ContinuationToken: token,
			})
			if err != nil {
				return nil, fmt.Errorf("list s3 objects: %w", err)
			}
			for _, obj := range out.Contents {
				key := aws.ToString(obj.Key)
				if !strings.HasSuffix(key, archiveSuffix) {
					continue
				}
				entries = append(entries, Entry{
					Key:      key,
					Size:     aws.ToInt64(obj.Size),
					Modified: aws.ToTime(obj.LastModified),
				})
			}
			if !aws.ToBool(out.IsTruncated) {
				break
			}
			token = out.NextContinuationToken
		}
	} else {
		dir, err := os.ReadDir(m.cfg.LocalDir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, nil
			}
			return nil, fmt.Errorf("read backup dir: %w", err)
		}
		for _, e := range dir {
			name := e.Name()
			if e.IsDir() || !strings.HasPrefix(name, localPrefix(m.cfg.Prefix)) || !strings.HasSuffix(name, archiveSuffix) {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			entries = append(entries, Entry{Key: name, Size: info.Size(), Modified: info.ModTime()})
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Modified.After(entries[j].Modified) })
	return entries, nil
}

// Cleanup deletes archives last modified before the cutoff and reports how
// many were removed.
func (m *Manager) Cleanup(ctx context.Context, before time.Time) (int, error) {
	entries, err := m.List(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, e := range entries {
		if !e.Modified.Before(before) {
			continue
		}
		if err := m.delete(ctx, e.Key); err != nil {
			m.logger.Warn("delete old backup", "key", e.Key, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

func (m *Manager) put(ctx context.Context, key string, data []byte) error {
	if m.client != nil {
		_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(m.cfg.S3.Bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(data),
			ContentLength: aws.Int64(int64(len(data))),
		})
		if err != nil {
			return fmt.Errorf("upload to s3: %w", err)
		}
		return nil
	}

	if err := os.MkdirAll(m.cfg.LocalDir, 0o700); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}
	if err := os.WriteFile(m.localPath(key), data, 0o600); err != nil {
		return fmt.Errorf("write backup file: %w", err)
	}
	return nil
}

func (m *Manager) get(ctx context.Context, key string) ([]byte, error) {
	if m.client != nil {
		out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(m.cfg.S3.Bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, fmt.Errorf("download from s3: %w", err)
		}
		defer out.Body.Close()
		data, err := io.ReadAll(out.Body)
		if err != nil {
			return nil, fmt.Errorf("read s3 object: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(m.localPath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read backup file: %w", err)
	}
	return data, nil
}

func (m *Manager) delete(ctx context.Context, key string) error {
	if m.client != nil {
		_, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.cfg.S3.Bucket),
			Key:    aws.String(key),
		})
		return err
	}
	return os.Remove(m.localPath(key))
}

// localPath confines keys to the backup directory.
func (m *Manager) localPath(key string) string {
	return filepath.Join(m.cfg.LocalDir, filepath.Base(key))
}

func localPrefix(prefix string) string {
	return filepath.Base(prefix + "famsched-")
}
