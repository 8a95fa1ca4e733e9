package upload

import (
	"context"
	"crypto/md5" //nolint:gosec
	"encoding/hex"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/abdul-hamid-achik/ingestd/internal/apperror"
	"github.com/abdul-hamid-achik/ingestd/internal/dedup"
	"github.com/abdul-hamid-achik/ingestd/internal/objectstore"
	"github.com/abdul-hamid-achik/ingestd/internal/sessionstore"
	"github.com/abdul-hamid-achik/ingestd/internal/staging"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := sessionstore.Open(":memory:", logger)
	if err != nil {
		t.Fatalf("sessionstore.Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return New(Config{
		Store:        store,
		Staging:      staging.New(t.TempDir()),
		Dedup:        dedup.New(t.TempDir() + "/md5_index.json"),
		Objects:      objectstore.New(t.TempDir()),
		ChunkSize:    1048576,
		MaxFileSize:  524288000,
		AllowedTypes: []string{"image/jpeg", "image/png", "video/mp4"},
		Logger:       logger,
	})
}

func jpegBytes(content string) []byte {
	data := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, []byte(content)...)
	return data
}

func md5Hex(data []byte) string {
	sum := md5.Sum(data) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// TestE1_HappyPathSmall mirrors spec scenario E1.
func TestE1_HappyPathSmall(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	content := jpegBytes("hello world!")
	digest := md5Hex(content)

	initRes, err := m.Initiate(ctx, "hi.jpg", "image/jpeg", int64(len(content)), digest, "")
	if err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}
	if initRes.Duplicate || initRes.TotalChunks != 1 {
		t.Fatalf("Initiate() = %+v, want single-chunk non-duplicate session", initRes)
	}

	if _, err := m.ReceiveChunk(ctx, initRes.SessionID, 0, strings.NewReader(string(content))); err != nil {
		t.Fatalf("ReceiveChunk() error = %v", err)
	}

	storedPath, err := m.Finalize(ctx, initRes.SessionID)
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if !strings.Contains(storedPath, "anonymous/hi_") {
		t.Errorf("Finalize() storedPath = %q, want anonymous/hi_* path", storedPath)
	}

	relPath, found, err := m.dedup.Lookup(digest, m.objects)
	if err != nil || !found || relPath != storedPath {
		t.Errorf("dedup.Lookup() = (%q, %v, %v), want (%q, true, nil)", relPath, found, err, storedPath)
	}
}

// TestE2_OutOfOrderChunks mirrors spec scenario E2.
func TestE2_OutOfOrderChunks(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()
	m.chunkSize = 1048576

	size := int64(3*1048576 + 100)
	content := jpegBytes(strings.Repeat("x", int(size)-4))
	digest := md5Hex(content)

	initRes, err := m.Initiate(ctx, "movie.jpg", "image/jpeg", int64(len(content)), digest, "")
	if err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}
	if initRes.TotalChunks != 4 {
		t.Fatalf("Initiate() TotalChunks = %d, want 4", initRes.TotalChunks)
	}

	chunks := make([][]byte, 4)
	for i := 0; i < 4; i++ {
		start := i * 1048576
		end := start + 1048576
		if end > len(content) {
			end = len(content)
		}
		chunks[i] = content[start:end]
	}

	order := []int{3, 0, 2, 1}
	wantProgress := []float64{25, 50, 75, 100}
	for k, idx := range order {
		res, err := m.ReceiveChunk(ctx, initRes.SessionID, idx, strings.NewReader(string(chunks[idx])))
		if err != nil {
			t.Fatalf("ReceiveChunk(%d) error = %v", idx, err)
		}
		if res.Progress != wantProgress[k] {
			t.Errorf("ReceiveChunk(%d) progress = %v, want %v", idx, res.Progress, wantProgress[k])
		}
	}

	if _, err := m.Finalize(ctx, initRes.SessionID); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
}

// TestE3_ChunkReplay mirrors spec scenario E3.
func TestE3_ChunkReplay(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	content := jpegBytes("some content here")
	digest := md5Hex(content)

	initRes, err := m.Initiate(ctx, "f.jpg", "image/jpeg", int64(len(content)), digest, "")
	if err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}

	if _, err := m.ReceiveChunk(ctx, initRes.SessionID, 0, strings.NewReader(string(content))); err != nil {
		t.Fatalf("ReceiveChunk() error = %v", err)
	}

	res, err := m.ReceiveChunk(ctx, initRes.SessionID, 0, strings.NewReader(string(content)))
	if err != nil {
		t.Fatalf("ReceiveChunk() replay error = %v", err)
	}
	if !res.AlreadyUploaded {
		t.Error("ReceiveChunk() replay AlreadyUploaded = false, want true")
	}
	if res.UploadedChunks != 1 {
		t.Errorf("ReceiveChunk() replay UploadedChunks = %d, want unchanged 1", res.UploadedChunks)
	}
}

// TestE4_DigestMismatch mirrors spec scenario E4.
func TestE4_DigestMismatch(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	content := jpegBytes("the real content")
	wrongDigest := md5Hex([]byte("something else entirely"))

	initRes, err := m.Initiate(ctx, "f.jpg", "image/jpeg", int64(len(content)), wrongDigest, "")
	if err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}

	if _, err := m.ReceiveChunk(ctx, initRes.SessionID, 0, strings.NewReader(string(content))); err != nil {
		t.Fatalf("ReceiveChunk() error = %v", err)
	}

	_, err = m.Finalize(ctx, initRes.SessionID)
	if !apperror.Is(err, apperror.ErrIntegrity) {
		t.Fatalf("Finalize() error = %v, want ErrIntegrity", err)
	}

	sess, err := m.GetStatus(ctx, initRes.SessionID)
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if sess.State != sessionstore.Failed {
		t.Errorf("GetStatus().State = %v, want Failed", sess.State)
	}
	if sess.StoredPath != "" {
		t.Errorf("GetStatus().StoredPath = %q, want empty", sess.StoredPath)
	}
}

// TestE5_DuplicateSuppression mirrors spec scenario E5.
func TestE5_DuplicateSuppression(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	content := jpegBytes("duplicate me")
	digest := md5Hex(content)

	first, err := m.Initiate(ctx, "orig.jpg", "image/jpeg", int64(len(content)), digest, "")
	if err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}
	if _, err := m.ReceiveChunk(ctx, first.SessionID, 0, strings.NewReader(string(content))); err != nil {
		t.Fatalf("ReceiveChunk() error = %v", err)
	}
	storedPath, err := m.Finalize(ctx, first.SessionID)
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	second, err := m.Initiate(ctx, "copy.jpg", "image/jpeg", int64(len(content)), digest, "")
	if err != nil {
		t.Fatalf("Initiate() second error = %v", err)
	}
	if !second.Duplicate || second.StoredPath != storedPath {
		t.Errorf("second Initiate() = %+v, want duplicate of %q", second, storedPath)
	}
	if second.SessionID != "" {
		t.Error("second Initiate() allocated a session id, want none")
	}
}

// TestE6_CancelThenReplay mirrors spec scenario E6.
func TestE6_CancelThenReplay(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()
	m.chunkSize = 10

	content := jpegBytes(strings.Repeat("y", 36))
	digest := md5Hex(content)

	initRes, err := m.Initiate(ctx, "f.jpg", "image/jpeg", int64(len(content)), digest, "")
	if err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}
	if initRes.TotalChunks != 4 {
		t.Fatalf("Initiate() TotalChunks = %d, want 4", initRes.TotalChunks)
	}

	if _, err := m.ReceiveChunk(ctx, initRes.SessionID, 0, strings.NewReader(string(content[0:10]))); err != nil {
		t.Fatalf("ReceiveChunk(0) error = %v", err)
	}
	if _, err := m.ReceiveChunk(ctx, initRes.SessionID, 1, strings.NewReader(string(content[10:20]))); err != nil {
		t.Fatalf("ReceiveChunk(1) error = %v", err)
	}

	if err := m.Cancel(ctx, initRes.SessionID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	_, err = m.ReceiveChunk(ctx, initRes.SessionID, 2, strings.NewReader(string(content[20:30])))
	if !apperror.Is(err, apperror.ErrConflict) {
		t.Fatalf("ReceiveChunk() after cancel error = %v, want ErrConflict", err)
	}

	fresh, err := m.Initiate(ctx, "f2.jpg", "image/jpeg", int64(len(content)), digest, "")
	if err != nil {
		t.Fatalf("Initiate() fresh error = %v", err)
	}
	if fresh.Duplicate || fresh.SessionID == initRes.SessionID {
		t.Errorf("Initiate() fresh = %+v, want a new non-duplicate session", fresh)
	}
}

func TestReceiveChunk_NotFound(t *testing.T) {
	m := testManager(t)
	_, err := m.ReceiveChunk(context.Background(), "missing", 0, strings.NewReader("x"))
	if !apperror.Is(err, apperror.ErrNotFound) {
		t.Errorf("ReceiveChunk() error = %v, want ErrNotFound", err)
	}
}

func TestReceiveChunk_IndexOutOfRange(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	content := jpegBytes("abc")
	initRes, err := m.Initiate(ctx, "f.jpg", "image/jpeg", int64(len(content)), md5Hex(content), "")
	if err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}

	_, err = m.ReceiveChunk(ctx, initRes.SessionID, 5, strings.NewReader("x"))
	if !apperror.Is(err, apperror.ErrInvalidArgument) {
		t.Errorf("ReceiveChunk() error = %v, want ErrInvalidArgument", err)
	}
}

func TestFinalize_FailedPrecondition(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	content := jpegBytes(strings.Repeat("z", 20))
	m.chunkSize = 10
	initRes, err := m.Initiate(ctx, "f.jpg", "image/jpeg", int64(len(content)), md5Hex(content), "")
	if err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}

	_, err = m.Finalize(ctx, initRes.SessionID)
	if !apperror.Is(err, apperror.ErrFailedPrecondition) {
		t.Errorf("Finalize() error = %v, want ErrFailedPrecondition", err)
	}
}

func TestFinalize_InvalidContent(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	content := []byte("not a jpeg at all, just text data padded out")
	digest := md5Hex(content)

	initRes, err := m.Initiate(ctx, "f.jpg", "image/jpeg", int64(len(content)), digest, "")
	if err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}
	if _, err := m.ReceiveChunk(ctx, initRes.SessionID, 0, strings.NewReader(string(content))); err != nil {
		t.Fatalf("ReceiveChunk() error = %v", err)
	}

	_, err = m.Finalize(ctx, initRes.SessionID)
	if !apperror.Is(err, apperror.ErrInvalidContent) {
		t.Errorf("Finalize() error = %v, want ErrInvalidContent", err)
	}
}

func TestFinalize_Idempotent(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	content := jpegBytes("idempotent finalize")
	digest := md5Hex(content)

	initRes, err := m.Initiate(ctx, "f.jpg", "image/jpeg", int64(len(content)), digest, "")
	if err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}
	if _, err := m.ReceiveChunk(ctx, initRes.SessionID, 0, strings.NewReader(string(content))); err != nil {
		t.Fatalf("ReceiveChunk() error = %v", err)
	}

	first, err := m.Finalize(ctx, initRes.SessionID)
	if err != nil {
		t.Fatalf("Finalize() first error = %v", err)
	}
	second, err := m.Finalize(ctx, initRes.SessionID)
	if err != nil {
		t.Fatalf("Finalize() second error = %v", err)
	}
	if first != second {
		t.Errorf("Finalize() second = %q, want same as first %q", second, first)
	}
}

func TestCancel_AlreadyTerminal(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	content := jpegBytes("x")
	initRes, err := m.Initiate(ctx, "f.jpg", "image/jpeg", int64(len(content)), md5Hex(content), "")
	if err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}

	if err := m.Cancel(ctx, initRes.SessionID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if err := m.Cancel(ctx, initRes.SessionID); !apperror.Is(err, apperror.ErrConflict) {
		t.Errorf("second Cancel() error = %v, want ErrConflict", err)
	}
}

func TestInitiate_InvalidArgument(t *testing.T) {
	m := testManager(t)
	_, err := m.Initiate(context.Background(), "f.txt", "text/plain", 10, "abc", "")
	if !apperror.Is(err, apperror.ErrInvalidArgument) {
		t.Errorf("Initiate() error = %v, want ErrInvalidArgument", err)
	}
}
