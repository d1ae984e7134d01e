package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	modified  map[string]time.Time
	uploadErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}, modified: map[string]time.Time{}}
}

func (m *memoryStore) Upload(ctx context.Context, name string, body io.Reader) error {
	if m.uploadErr != nil {
		return m.uploadErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[name] = data
	m.modified[name] = time.Now()
	return nil
}

func (m *memoryStore) List(ctx context.Context, namePrefix string) ([]ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ObjectInfo
	for name, data := range m.objects {
		out = append(out, ObjectInfo{Key: name, Size: int64(len(data)), LastModified: m.modified[name]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memoryStore) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, name)
	return nil
}

func (m *memoryStore) names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.objects))
	for name := range m.objects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type capturedEvent struct {
	eventType events.EventType
	data      events.EventData
}

type capturePublisher struct {
	events []capturedEvent
}

func (c *capturePublisher) EmitTyped(eventType events.EventType, module string, data events.EventData) {
	c.events = append(c.events, capturedEvent{eventType, data})
}

func newHistoryDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "history.db"),
		Profile: database.ProfileJournal,
		Name:    "history",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())

	_, err = db.Conn().Exec(`INSERT INTO journal (id, kind, summary, created_at) VALUES ('e1', 'portfolio_saved', 'Saved Growth', 1)`)
	require.NoError(t, err)
	return db
}

func readArchive(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	files := map[string][]byte{}
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		body, err := io.ReadAll(tr)
		require.NoError(t, err)
		files[hdr.Name] = body
	}
	return files
}

func TestCreateAndUploadBackup(t *testing.T) {
	store := newMemoryStore()
	pub := &capturePublisher{}
	db := newHistoryDB(t)

	svc := NewBackupService(store, map[string]*database.DB{"history": db}, t.TempDir(), pub, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2024, 3, 28, 14, 5, 9, 0, time.UTC) }

	name, err := svc.CreateAndUploadBackup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "folio-backup-2024-03-28-140509.tar.gz", name)
	require.Equal(t, []string{name}, store.names())

	files := readArchive(t, store.objects[name])
	require.Contains(t, files, "history.db")
	require.Contains(t, files, metadataFile)

	var meta BackupMetadata
	require.NoError(t, json.Unmarshal(files[metadataFile], &meta))
	require.Len(t, meta.Databases, 1)
	assert.Equal(t, "history", meta.Databases[0].Name)
	assert.Equal(t, int64(len(files["history.db"])), meta.Databases[0].SizeBytes)
	assert.Equal(t, fmt.Sprintf("sha256:%x", sha256.Sum256(files["history.db"])), meta.Databases[0].Checksum)

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.BackupCompleted, pub.events[0].eventType)
	data := pub.events[0].data.(*events.BackupCompletedData)
	assert.Equal(t, name, data.Key)
	assert.Equal(t, int64(len(store.objects[name])), data.SizeBytes)
}

func TestCreateAndUploadBackup_UploadFailure(t *testing.T) {
	store := newMemoryStore()
	store.uploadErr = errors.New("access denied")
	pub := &capturePublisher{}

	svc := NewBackupService(store, map[string]*database.DB{"history": newHistoryDB(t)}, t.TempDir(), pub, zerolog.Nop())
	_, err := svc.CreateAndUploadBackup(context.Background())
	assert.EqualError(t, err, "access denied")
	assert.Empty(t, pub.events)
}

func TestListBackups_NewestFirstIgnoresForeignKeys(t *testing.T) {
	store := newMemoryStore()
	for _, name := range []string{
		"folio-backup-2024-03-01-000000.tar.gz",
		"folio-backup-2024-03-20-000000.tar.gz",
		"folio-backup-garbage.tar.gz",
		"notes.txt",
	} {
		require.NoError(t, store.Upload(context.Background(), name, bytes.NewReader([]byte("x"))))
	}

	svc := NewBackupService(store, nil, t.TempDir(), nil, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2024, 3, 21, 0, 0, 0, 0, time.UTC) }

	backups, err := svc.ListBackups(context.Background())
	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.Equal(t, "folio-backup-2024-03-20-000000.tar.gz", backups[0].Filename)
	assert.Equal(t, int64(24), backups[0].AgeHours)
	assert.Equal(t, "folio-backup-2024-03-01-000000.tar.gz", backups[1].Filename)
}

func TestRotateOldBackups_KeepsNewestThree(t *testing.T) {
	store := newMemoryStore()
	for day := 1; day <= 6; day++ {
		name := fmt.Sprintf("folio-backup-2024-01-%02d-000000.tar.gz", day)
		require.NoError(t, store.Upload(context.Background(), name, bytes.NewReader([]byte("x"))))
	}

	svc := NewBackupService(store, nil, t.TempDir(), nil, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }

	deleted, err := svc.RotateOldBackups(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)
	assert.Equal(t, []string{
		"folio-backup-2024-01-04-000000.tar.gz",
		"folio-backup-2024-01-05-000000.tar.gz",
		"folio-backup-2024-01-06-000000.tar.gz",
	}, store.names())

	deleted, err = svc.RotateOldBackups(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestRotateOldBackups_KeepsRecent(t *testing.T) {
	store := newMemoryStore()
	for day := 1; day <= 5; day++ {
		name := fmt.Sprintf("folio-backup-2024-05-%02d-000000.tar.gz", day)
		require.NoError(t, store.Upload(context.Background(), name, bytes.NewReader([]byte("x"))))
	}

	svc := NewBackupService(store, nil, t.TempDir(), nil, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC) }

	deleted, err := svc.RotateOldBackups(context.Background(), 30)
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.Len(t, store.names(), 5)
}

func TestBackupJob(t *testing.T) {
	store := newMemoryStore()
	svc := NewBackupService(store, map[string]*database.DB{"history": newHistoryDB(t)}, t.TempDir(), nil, zerolog.Nop())

	job := NewBackupJob(svc, 30, zerolog.Nop())
	assert.Equal(t, "backup", job.Name())
	require.NoError(t, job.Run())
	assert.Len(t, store.names(), 1)
}

func TestMaintenanceJob(t *testing.T) {
	dir := t.TempDir()
	job := NewMaintenanceJob(map[string]*database.DB{"history": newHistoryDB(t), "cache": nil}, dir, zerolog.Nop())
	assert.Equal(t, "maintenance", job.Name())
	assert.NoError(t, job.Run())
}
