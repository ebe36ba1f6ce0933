package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/seoulfie/drivegallery/internal/cache"
	"github.com/seoulfie/drivegallery/internal/models"
	"github.com/seoulfie/drivegallery/internal/retry"
)

// fakeSource counts backend calls and can be scripted to fail.
type fakeSource struct {
	folderNameCalls int
	listCalls       int
	downloadCalls   int

	downloadErr error
	data        []byte
}

func (f *fakeSource) FolderName(ctx context.Context, folderID string) (string, error) {
	f.folderNameCalls++
	return "name-" + folderID, nil
}

func (f *fakeSource) ListFolders(ctx context.Context, parentID string) ([]models.Folder, error) {
	f.listCalls++
	return []models.Folder{{ID: parentID + "/a", Name: "a"}}, nil
}

func (f *fakeSource) ListImages(ctx context.Context, parentID string) ([]models.ImageDescriptor, error) {
	f.listCalls++
	return []models.ImageDescriptor{{ID: parentID + "/1.jpg", Name: "1.jpg", MIMEType: "image/jpeg"}}, nil
}

func (f *fakeSource) DownloadBytes(ctx context.Context, fileID string) ([]byte, error) {
	f.downloadCalls++
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	return f.data, nil
}

func (f *fakeSource) Close() error { return nil }

func newCachedForTest(src Source) (*Cached, *cache.Store) {
	store := cache.New()
	c := NewCached(src, store, 300*time.Second)
	// No waiting between attempts in tests.
	c.download = retry.Policy{MaxAttempts: retry.DownloadAttempts}
	return c, store
}

func TestCached_ListHitMakesOneBackendCall(t *testing.T) {
	fake := &fakeSource{}
	c, _ := newCachedForTest(fake)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := c.ListFolders(ctx, "root"); err != nil {
			t.Fatalf("ListFolders: %v", err)
		}
	}
	if fake.listCalls != 1 {
		t.Errorf("backend calls = %d, want 1", fake.listCalls)
	}

	// A different parent id is a different cache key.
	if _, err := c.ListFolders(ctx, "other"); err != nil {
		t.Fatalf("ListFolders: %v", err)
	}
	if fake.listCalls != 2 {
		t.Errorf("backend calls = %d, want 2", fake.listCalls)
	}
}

func TestCached_FolderNameHit(t *testing.T) {
	fake := &fakeSource{}
	c, _ := newCachedForTest(fake)
	ctx := context.Background()

	name1, err := c.FolderName(ctx, "abc")
	if err != nil {
		t.Fatalf("FolderName: %v", err)
	}
	name2, err := c.FolderName(ctx, "abc")
	if err != nil {
		t.Fatalf("FolderName: %v", err)
	}
	if name1 != "name-abc" || name2 != name1 {
		t.Errorf("names = %q, %q", name1, name2)
	}
	if fake.folderNameCalls != 1 {
		t.Errorf("backend calls = %d, want 1", fake.folderNameCalls)
	}
}

func TestCached_ListExpiryTriggersFreshCall(t *testing.T) {
	fake := &fakeSource{}
	c, store := newCachedForTest(fake)
	ctx := context.Background()

	now := time.Now()
	store.SetNow(func() time.Time { return now })

	if _, err := c.ListImages(ctx, "session"); err != nil {
		t.Fatalf("ListImages: %v", err)
	}

	now = now.Add(301 * time.Second)
	if _, err := c.ListImages(ctx, "session"); err != nil {
		t.Fatalf("ListImages: %v", err)
	}
	if fake.listCalls != 2 {
		t.Errorf("backend calls after expiry = %d, want 2", fake.listCalls)
	}
}

func TestCached_DownloadCachedIndefinitely(t *testing.T) {
	fake := &fakeSource{data: []byte("jpeg bytes")}
	c, store := newCachedForTest(fake)
	ctx := context.Background()

	now := time.Now()
	store.SetNow(func() time.Time { return now })

	if _, err := c.DownloadBytes(ctx, "img1"); err != nil {
		t.Fatalf("DownloadBytes: %v", err)
	}

	// Bytes never expire, even far past the list TTL.
	now = now.Add(24 * time.Hour)
	data, err := c.DownloadBytes(ctx, "img1")
	if err != nil {
		t.Fatalf("DownloadBytes: %v", err)
	}
	if string(data) != "jpeg bytes" {
		t.Errorf("data = %q", data)
	}
	if fake.downloadCalls != 1 {
		t.Errorf("backend calls = %d, want 1", fake.downloadCalls)
	}
}

func TestCached_DownloadRetriesExactlyThreeTimes(t *testing.T) {
	cause := errors.New("connection reset by peer")
	fake := &fakeSource{downloadErr: cause}
	c, _ := newCachedForTest(fake)

	_, err := c.DownloadBytes(context.Background(), "img1")
	if fake.downloadCalls != 3 {
		t.Errorf("attempts = %d, want exactly 3", fake.downloadCalls)
	}

	var dlErr *models.DownloadError
	if !errors.As(err, &dlErr) {
		t.Fatalf("err = %T, want *models.DownloadError", err)
	}
	if dlErr.FileID != "img1" {
		t.Errorf("FileID = %q", dlErr.FileID)
	}
	if !errors.Is(err, cause) {
		t.Error("DownloadError does not carry the underlying cause")
	}
}

func TestCached_FailedDownloadNotCached(t *testing.T) {
	fake := &fakeSource{downloadErr: errors.New("boom")}
	c, _ := newCachedForTest(fake)
	ctx := context.Background()

	c.DownloadBytes(ctx, "img1")

	// Backend recovers; the next call must go through.
	fake.downloadErr = nil
	fake.data = []byte("ok now")
	data, err := c.DownloadBytes(ctx, "img1")
	if err != nil {
		t.Fatalf("DownloadBytes after recovery: %v", err)
	}
	if string(data) != "ok now" {
		t.Errorf("data = %q", data)
	}
}

func TestCached_ClearForcesRefetch(t *testing.T) {
	fake := &fakeSource{data: []byte("x")}
	c, _ := newCachedForTest(fake)
	ctx := context.Background()

	c.ListFolders(ctx, "root")
	c.DownloadBytes(ctx, "img1")

	if n := c.Clear(); n != 2 {
		t.Errorf("Clear = %d, want 2", n)
	}

	c.ListFolders(ctx, "root")
	c.DownloadBytes(ctx, "img1")
	if fake.listCalls != 2 || fake.downloadCalls != 2 {
		t.Errorf("calls after clear = %d list, %d download; want 2, 2",
			fake.listCalls, fake.downloadCalls)
	}
}
