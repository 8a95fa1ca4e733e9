// Package upload implements the Session Manager: it orchestrates the
// upload protocol (initiate, receive chunk, finalize, status, cancel)
// over the Session Store, Chunk Staging Area, Content Validator,
// Digest Verifier, Deduplication Index, and Object Store.
package upload

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/ingestd/internal/apperror"
	"github.com/abdul-hamid-achik/ingestd/internal/dedup"
	"github.com/abdul-hamid-achik/ingestd/internal/metrics"
	"github.com/abdul-hamid-achik/ingestd/internal/objectstore"
	"github.com/abdul-hamid-achik/ingestd/internal/sessionstore"
	"github.com/abdul-hamid-achik/ingestd/internal/staging"
	"github.com/abdul-hamid-achik/ingestd/internal/validate"
)

// Config wires the Session Manager's dependencies and the configuration
// values it needs to validate Initiate requests.
type Config struct {
	Store        *sessionstore.Store
	Staging      *staging.Area
	Dedup        *dedup.Index
	Objects      *objectstore.Store
	ChunkSize    int64
	MaxFileSize  int64
	AllowedTypes []string
	Logger       *slog.Logger
}

// Manager is the Session Manager. It serializes state transitions on a
// given session via a per-session-id mutex registry; different sessions
// never contend with each other.
type Manager struct {
	store        *sessionstore.Store
	staging      *staging.Area
	dedup        *dedup.Index
	objects      *objectstore.Store
	chunkSize    int64
	maxFileSize  int64
	allowedTypes []string
	logger       *slog.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(cfg Config) *Manager {
	return &Manager{
		store:        cfg.Store,
		staging:      cfg.Staging,
		dedup:        cfg.Dedup,
		objects:      cfg.Objects,
		chunkSize:    cfg.ChunkSize,
		maxFileSize:  cfg.MaxFileSize,
		allowedTypes: cfg.AllowedTypes,
		logger:       cfg.Logger,
		locks:        make(map[string]*sync.Mutex),
	}
}

func (m *Manager) lockFor(sessionID string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()

	l, ok := m.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[sessionID] = l
	}
	return l
}

// InitiateResult is returned by Initiate. Exactly one of (SessionID) or
// (Duplicate+StoredPath) is populated on success.
type InitiateResult struct {
	Duplicate   bool
	StoredPath  string
	SessionID   string
	TotalChunks int
	ChunkSize   int64
}

// Initiate validates the declared metadata, consults the Dedup Index,
// and on a miss creates a new session row in state Initiated.
func (m *Manager) Initiate(ctx context.Context, filename, mediaType string, size int64, digest, owner string) (InitiateResult, error) {
	errs := validate.ValidateMetadata(
		validate.Metadata{Filename: filename, MediaType: mediaType, Size: size},
		validate.MetadataConfig{MaxFileSize: m.maxFileSize, AllowedTypes: m.allowedTypes},
	)
	if len(errs) > 0 {
		metrics.RecordSession("rejected")
		return InitiateResult{}, apperror.WithDetails(apperror.ErrInvalidArgument, errs)
	}

	if relPath, found, err := m.dedup.Lookup(digest, m.objects); err != nil {
		return InitiateResult{}, apperror.Wrap(err, apperror.ErrInternal)
	} else if found {
		metrics.RecordDedupHit()
		metrics.RecordSession("duplicate")
		return InitiateResult{Duplicate: true, StoredPath: relPath}, nil
	}

	totalChunks := int((size + m.chunkSize - 1) / m.chunkSize)
	sessionID, err := newSessionID()
	if err != nil {
		return InitiateResult{}, apperror.Wrap(err, apperror.ErrInternal)
	}

	sess := sessionstore.Session{
		ID:          sessionID,
		Owner:       owner,
		Filename:    filename,
		MediaType:   mediaType,
		Size:        size,
		Digest:      digest,
		ChunkSize:   m.chunkSize,
		TotalChunks: totalChunks,
		State:       sessionstore.Initiated,
		CreatedAt:   time.Now(),
	}

	if err := m.store.Create(ctx, sess); err != nil {
		return InitiateResult{}, apperror.Wrap(err, apperror.ErrInternal)
	}

	metrics.RecordSession("initiated")
	m.logger.Info("upload initiated", "session_id", sessionID, "filename", filename, "size", size, "total_chunks", totalChunks)

	return InitiateResult{SessionID: sessionID, TotalChunks: totalChunks, ChunkSize: m.chunkSize}, nil
}

// newSessionID returns an id of the form YYYYMMDDHHMMSS-{16 hex chars}.
func newSessionID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("upload: generate session id: %w", err)
	}
	return fmt.Sprintf("%s-%s", time.Now().UTC().Format("20060102150405"), hex.EncodeToString(buf)), nil
}

// ChunkResult is returned by ReceiveChunk.
type ChunkResult struct {
	AlreadyUploaded bool
	UploadedChunks  int
	TotalChunks     int
	Progress        float64
}

// ReceiveChunk stages one chunk for a session, advancing progress and
// state. It is idempotent against a pre-existing chunk at the same
// index: the HasChunk probe and the counter increment share the
// per-session critical section so two concurrent receives of the same
// index cannot both increment.
func (m *Manager) ReceiveChunk(ctx context.Context, sessionID string, index int, r io.Reader) (ChunkResult, error) {
	lock := m.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := m.store.Get(ctx, sessionID)
	if err == sessionstore.ErrNotFound {
		metrics.RecordChunk("not_found")
		return ChunkResult{}, apperror.ErrNotFound
	}
	if err != nil {
		return ChunkResult{}, apperror.Wrap(err, apperror.ErrInternal)
	}

	if sess.State.Terminal() {
		metrics.RecordChunk("conflict")
		return ChunkResult{}, apperror.ErrConflict
	}

	if index < 0 || index >= sess.TotalChunks {
		metrics.RecordChunk("invalid_index")
		return ChunkResult{}, apperror.ErrInvalidArgument
	}

	if m.staging.HasChunk(sessionID, index) {
		metrics.RecordChunk("replay")
		return ChunkResult{
			AlreadyUploaded: true,
			UploadedChunks:  sess.UploadedChunks,
			TotalChunks:     sess.TotalChunks,
			Progress:        sess.Progress(),
		}, nil
	}

	n, err := m.staging.StageChunk(sessionID, index, r)
	if err != nil {
		metrics.RecordChunk("stage_error")
		return ChunkResult{}, apperror.Wrap(err, apperror.ErrInternal)
	}
	metrics.RecordChunk("staged")
	metrics.RecordBytes("staged", n)

	indices, err := m.staging.EnumerateChunks(sessionID)
	if err != nil {
		return ChunkResult{}, apperror.Wrap(err, apperror.ErrInternal)
	}
	uploaded := len(indices)

	newState := sessionstore.Uploading
	now := time.Now()
	if err := m.store.UpdateProgress(ctx, sessionID, uploaded, newState, now); err != nil {
		return ChunkResult{}, apperror.Wrap(err, apperror.ErrInternal)
	}

	return ChunkResult{
		UploadedChunks: uploaded,
		TotalChunks:    sess.TotalChunks,
		Progress:       sessionstore.Session{UploadedChunks: uploaded, TotalChunks: sess.TotalChunks}.Progress(),
	}, nil
}

// Finalize runs the finalisation pipeline: reassemble, verify, validate,
// materialise, register, commit. It is serialised per session.
func (m *Manager) Finalize(ctx context.Context, sessionID string) (string, error) {
	lock := m.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := m.store.Get(ctx, sessionID)
	if err == sessionstore.ErrNotFound {
		return "", apperror.ErrNotFound
	}
	if err != nil {
		return "", apperror.Wrap(err, apperror.ErrInternal)
	}

	if sess.State == sessionstore.Completed {
		return sess.StoredPath, nil
	}
	if sess.State.Terminal() {
		return "", apperror.ErrConflict
	}
	if sess.UploadedChunks < sess.TotalChunks {
		return "", apperror.ErrFailedPrecondition
	}

	start := time.Now()
	storedPath, finalizeErr := m.finalizePipeline(ctx, sess)
	metrics.RecordFinalize(outcomeLabel(finalizeErr), time.Since(start).Seconds())

	if finalizeErr != nil {
		msg := apperror.SafeMessage(finalizeErr)
		if markErr := m.store.MarkFailed(ctx, sessionID, msg, time.Now()); markErr != nil {
			m.logger.Error("failed to mark session failed", "session_id", sessionID, "error", markErr)
		}
		metrics.RecordSession("failed")
		return "", finalizeErr
	}

	if err := m.store.MarkCompleted(ctx, sessionID, storedPath, time.Now()); err != nil {
		return "", apperror.Wrap(err, apperror.ErrInternal)
	}
	if err := m.staging.Purge(sessionID); err != nil {
		m.logger.Warn("failed to purge staging after finalize", "session_id", sessionID, "error", err)
	}

	metrics.RecordSession("completed")
	metrics.RecordBytes("stored", sess.Size)
	m.logger.Info("upload finalized", "session_id", sessionID, "stored_path", storedPath)

	return storedPath, nil
}

func outcomeLabel(err error) string {
	if err == nil {
		return "success"
	}
	return apperror.Code(err)
}

// finalizePipeline implements steps 1-5 of §4.1's finalisation pipeline;
// the caller (Finalize) is responsible for steps 6-7 (commit/cleanup).
func (m *Manager) finalizePipeline(ctx context.Context, sess sessionstore.Session) (string, error) {
	tmpFile, err := os.CreateTemp("", "ingestd_finalize_*.tmp")
	if err != nil {
		return "", apperror.Wrap(err, apperror.ErrInternal)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	if err := m.staging.Reassemble(sess.ID, sess.TotalChunks, tmpPath); err != nil {
		return "", apperror.Wrap(err, apperror.ErrDataLoss)
	}

	match, err := validate.Verify(tmpPath, sess.Digest)
	if err != nil {
		return "", apperror.Wrap(err, apperror.ErrInternal)
	}
	if !match {
		return "", apperror.ErrIntegrity
	}

	outcome, err := validate.Validate(tmpPath, sess.MediaType)
	if err != nil {
		return "", apperror.Wrap(err, apperror.ErrInternal)
	}
	if outcome != validate.Ok {
		return "", apperror.ErrInvalidContent
	}

	relPath, err := m.objects.Store(tmpPath, sess.Filename, sess.Owner)
	if err != nil {
		return "", apperror.Wrap(err, apperror.ErrInternal)
	}

	if err := m.dedup.Register(sess.Digest, relPath); err != nil {
		m.logger.Warn("failed to register dedup entry", "session_id", sess.ID, "error", err)
	}

	return relPath, nil
}

// GetStatus reports all session attributes including derived progress.
func (m *Manager) GetStatus(ctx context.Context, sessionID string) (sessionstore.Session, error) {
	sess, err := m.store.Get(ctx, sessionID)
	if err == sessionstore.ErrNotFound {
		return sessionstore.Session{}, apperror.ErrNotFound
	}
	if err != nil {
		return sessionstore.Session{}, apperror.Wrap(err, apperror.ErrInternal)
	}
	return sess, nil
}

// Cancel transitions a session to Cancelled and asynchronously purges
// its staging directory.
func (m *Manager) Cancel(ctx context.Context, sessionID string) error {
	lock := m.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := m.store.Get(ctx, sessionID)
	if err == sessionstore.ErrNotFound {
		return apperror.ErrNotFound
	}
	if err != nil {
		return apperror.Wrap(err, apperror.ErrInternal)
	}

	if sess.State.Terminal() {
		return apperror.ErrConflict
	}

	if err := m.store.MarkCancelled(ctx, sessionID, time.Now()); err != nil {
		return apperror.Wrap(err, apperror.ErrInternal)
	}

	go func() {
		if err := m.staging.Purge(sessionID); err != nil {
			m.logger.Warn("failed to purge staging after cancel", "session_id", sessionID, "error", err)
		}
	}()

	metrics.RecordSession("cancelled")
	return nil
}
