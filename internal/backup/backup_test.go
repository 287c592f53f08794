package backup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dukerupert/famsched/internal/broadcast"
	"github.com/dukerupert/famsched/internal/database"
	"github.com/dukerupert/famsched/internal/model"
	"github.com/dukerupert/famsched/internal/store"
)

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu       sync.Mutex
	objects  map[string][]byte
	modified map[string]time.Time
	putErr   error
	getErr   error
	delErr   error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte), modified: make(map[string]time.Time)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = data
	m.modified[*input.Key] = time.Now()
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, &s3NotFound{}
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(data)),
	}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if m.delErr != nil {
		return nil, m.delErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *input.Key)
	delete(m.modified, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3Client) ListObjectsV2(_ context.Context, input *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := aws.ToString(input.Prefix)
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(m.objects[k]))),
			LastModified: aws.Time(m.modified[k]),
		})
	}
	return out, nil
}

type s3NotFound struct{}

func (e *s3NotFound) Error() string { return "NoSuchKey" }

func setupStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	bus := broadcast.NewBus(slog.Default())
	s := store.New(store.NewSQLiteMedium(db), bus.Open("test"), slog.Default())
	t.Cleanup(func() { s.Close() })
	if _, err := s.Seed(model.DefaultFamily()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return s
}

func s3Manager(t *testing.T, st *store.Store) (*Manager, *mockS3Client) {
	t.Helper()
	m := NewManager(Config{
		S3:         S3Config{Bucket: "test", AccessKey: "key", SecretKey: "secret"},
		Passphrase: "family-secret",
		Prefix:     "nightly/",
	}, st, slog.Default(), nil)
	mock := newMockS3()
	m.client = mock
	return m, mock
}

func memberCount(t *testing.T, st *store.Store) int {
	t.Helper()
	records, err := st.Get(store.Members)
	if err != nil {
		t.Fatalf("get members: %v", err)
	}
	return len(records)
}

func TestManagerState(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want State
	}{
		{"empty", Config{}, StateDisabled},
		{"s3 without passphrase", Config{S3: S3Config{Bucket: "b", AccessKey: "k", SecretKey: "s"}}, StateDisabled},
		{"s3", Config{S3: S3Config{Bucket: "b", AccessKey: "k", SecretKey: "s"}, Passphrase: "p"}, StateIdle},
		{"local dir", Config{LocalDir: "/tmp/x", Passphrase: "p"}, StateIdle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(tt.cfg, nil, slog.Default(), nil)
			if got := m.Status().State; got != tt.want {
				t.Errorf("state = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRunDisabled(t *testing.T) {
	m := NewManager(Config{}, nil, slog.Default(), nil)
	if _, err := m.Run(context.Background()); !errors.Is(err, ErrDisabled) {
		t.Fatalf("err = %v, want ErrDisabled", err)
	}
	if err := m.Restore(context.Background(), "x"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("restore err = %v, want ErrDisabled", err)
	}
}

func TestRunAndRestoreS3(t *testing.T) {
	st := setupStore(t)
	m, mock := s3Manager(t, st)
	ctx := context.Background()

	key, err := m.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.HasPrefix(key, "nightly/famsched-") || !strings.HasSuffix(key, archiveSuffix) {
		t.Errorf("key = %q", key)
	}
	if bytes.Contains(mock.objects[key], []byte("Dad")) {
		t.Error("uploaded archive should be encrypted")
	}
	if s := m.Status(); s.State != StateIdle || s.LastKey != key || s.LastBackup == nil {
		t.Errorf("status = %+v", s)
	}

	if err := st.Set(store.Members, nil); err != nil {
		t.Fatalf("clear members: %v", err)
	}
	if n := memberCount(t, st); n != 0 {
		t.Fatalf("members after clear = %d, want 0", n)
	}

	if err := m.Restore(ctx, key); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if n := memberCount(t, st); n != 4 {
		t.Errorf("members after restore = %d, want 4", n)
	}
}

func TestRestoreNotifiesSubscribers(t *testing.T) {
	st := setupStore(t)
	m, _ := s3Manager(t, st)
	ctx := context.Background()

	key, err := m.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	var mu sync.Mutex
	calls := 0
	st.Subscribe(func() {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	if err := m.Restore(ctx, key); err != nil {
		t.Fatalf("restore: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != len(store.Collections) {
		t.Errorf("notifications = %d, want %d", calls, len(store.Collections))
	}
}

func TestRestoreWrongPassphrase(t *testing.T) {
	st := setupStore(t)
	m, mock := s3Manager(t, st)

	key, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	other := NewManager(Config{
		S3:         S3Config{Bucket: "test", AccessKey: "key", SecretKey: "secret"},
		Passphrase: "wrong",
	}, st, slog.Default(), nil)
	other.client = mock

	if err := other.Restore(context.Background(), key); err == nil {
		t.Fatal("expected error with wrong passphrase")
	}
	if n := memberCount(t, st); n != 4 {
		t.Errorf("members = %d, want 4 (unchanged)", n)
	}
}

func TestRunUploadFailure(t *testing.T) {
	st := setupStore(t)
	m, mock := s3Manager(t, st)
	mock.putErr = errors.New("bucket gone")

	if _, err := m.Run(context.Background()); err == nil {
		t.Fatal("expected upload error")
	}
	s := m.Status()
	if s.State != StateError {
		t.Errorf("state = %q, want %q", s.State, StateError)
	}
	if !strings.Contains(s.Error, "bucket gone") {
		t.Errorf("error = %q", s.Error)
	}
}

func TestStatusCallback(t *testing.T) {
	st := setupStore(t)
	var mu sync.Mutex
	var received []State
	m := NewManager(Config{
		S3:         S3Config{Bucket: "test", AccessKey: "key", SecretKey: "secret"},
		Passphrase: "p",
	}, st, slog.Default(), func(s Status) {
		mu.Lock()
		received = append(received, s.State)
		mu.Unlock()
	})
	m.client = newMockS3()

	if _, err := m.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 2 || received[0] != StateRunning || received[1] != StateIdle {
		t.Errorf("callbacks = %v, want [running idle]", received)
	}
}

func TestCleanupS3(t *testing.T) {
	st := setupStore(t)
	m, mock := s3Manager(t, st)
	ctx := context.Background()

	key, err := m.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	mock.modified[key] = time.Now().Add(-72 * time.Hour)
	mock.objects["nightly/notes.txt"] = []byte("unrelated")
	mock.modified["nightly/notes.txt"] = time.Now().Add(-72 * time.Hour)

	m.now = func() time.Time { return time.Now().Add(time.Second) }
	fresh, err := m.Run(ctx)
	if err != nil {
		t.Fatalf("run 2: %v", err)
	}

	n, err := m.Cleanup(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 1 {
		t.Errorf("removed = %d, want 1", n)
	}
	if _, ok := mock.objects[key]; ok {
		t.Error("old archive should be deleted")
	}
	if _, ok := mock.objects[fresh]; !ok {
		t.Error("fresh archive should be kept")
	}
	if _, ok := mock.objects["nightly/notes.txt"]; !ok {
		t.Error("non-archive objects should be left alone")
	}
}

func TestLocalDirRoundTrip(t *testing.T) {
	st := setupStore(t)
	dir := filepath.Join(t.TempDir(), "backups")
	m := NewManager(Config{LocalDir: dir, Passphrase: "p"}, st, slog.Default(), nil)
	ctx := context.Background()

	key, err := m.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, key)); err != nil {
		t.Fatalf("archive file: %v", err)
	}

	entries, err := m.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || entries[0].Key != key {
		t.Fatalf("entries = %+v", entries)
	}

	if err := st.Set(store.Members, nil); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := m.Restore(ctx, key); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if n := memberCount(t, st); n != 4 {
		t.Errorf("members after restore = %d, want 4", n)
	}

	if err := m.Restore(ctx, "famsched-missing.json.enc"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing restore err = %v, want ErrNotFound", err)
	}

	n, err := m.Cleanup(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 1 {
		t.Errorf("removed = %d, want 1", n)
	}
}

func TestManagerStopSafety(t *testing.T) {
	m := NewManager(Config{LocalDir: t.TempDir(), Passphrase: "p"}, nil, slog.Default(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	cancel()
	m.Stop()

	// Double stop should not panic
	m.Stop()
}

func TestManagerDisabledNoStart(t *testing.T) {
	m := NewManager(Config{}, nil, slog.Default(), nil)
	m.Start(context.Background())
	m.Stop()
}
