// Package sweeper implements the Lifecycle Sweeper: periodic tasks that
// delete expired staging directories and expired stored objects.
package sweeper

import (
	"errors"
	"log/slog"
	"time"

	"github.com/abdul-hamid-achik/ingestd/internal/metrics"
	"github.com/abdul-hamid-achik/ingestd/internal/objectstore"
	"github.com/abdul-hamid-achik/ingestd/internal/staging"
)

// Sweeper runs the two periodic maintenance tasks. It does not touch
// the Session Store: a session whose staging was purged simply becomes
// unfinalisable, failing DataLoss on a later Finalize.
type Sweeper struct {
	staging       *staging.Area
	objects       *objectstore.Store
	chunkTimeout  time.Duration
	retentionDays int
	logger        *slog.Logger
}

func New(stagingArea *staging.Area, objects *objectstore.Store, chunkTimeout time.Duration, retentionDays int, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		staging:       stagingArea,
		objects:       objects,
		chunkTimeout:  chunkTimeout,
		retentionDays: retentionDays,
		logger:        logger,
	}
}

// PurgeExpiredStaging deletes any staging directory older than
// now-chunkTimeout. Recommended cadence: hourly.
func (s *Sweeper) PurgeExpiredStaging() {
	now := time.Now()
	purged, err := s.staging.PurgeExpired(now, s.chunkTimeout)
	metrics.RecordSweep("staging", purged, 0, 0, err)

	if err != nil {
		s.logger.Error("staging sweep failed", "error", err)
		return
	}
	s.logger.Info("staging sweep complete", "purged", purged)
}

// PurgeExpiredObjects walks the Object Store and deletes any file whose
// mtime is older than now-retentionDays, exempting the dedup index
// file. Recommended cadence: daily.
func (s *Sweeper) PurgeExpiredObjects() {
	now := time.Now()
	retention := time.Duration(s.retentionDays) * 24 * time.Hour

	scanned, deleted, errs, freedBytes := s.objects.PurgeExpired(now, retention)

	var err error
	if errs > 0 {
		err = errObjectSweepFailed
	}
	metrics.RecordSweep("objects", 0, deleted, freedBytes, err)

	s.logger.Info("object sweep complete",
		"scanned", scanned, "deleted", deleted, "errors", errs, "freed_bytes", freedBytes)
}

var errObjectSweepFailed = errors.New("sweeper: one or more object deletions failed")
