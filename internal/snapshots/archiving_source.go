package snapshots

import (
	"context"

	"github.com/clearsight/adscope/internal/domain"
	"github.com/clearsight/adscope/internal/pkg/logger"
)

// Source yields an ad's captures, newest first.
type Source interface {
	FetchSnapshots(ctx context.Context, adID string) ([]domain.Snapshot, error)
}

// ArchivingSource moves inline snapshot bodies into the S3 archive on the
// way through, replacing them with archive keys. An archive failure keeps
// the snapshot usable; only the raw body is lost for audit.
type ArchivingSource struct {
	src     Source
	archive *Archive
}

func NewArchivingSource(src Source, archive *Archive) *ArchivingSource {
	return &ArchivingSource{src: src, archive: archive}
}

func (a *ArchivingSource) FetchSnapshots(ctx context.Context, adID string) ([]domain.Snapshot, error) {
	snaps, err := a.src.FetchSnapshots(ctx, adID)
	if err != nil {
		return nil, err
	}
	for i := range snaps {
		s := &snaps[i]
		if s.Body == "" || s.ArchiveKey != "" {
			continue
		}
		key, err := a.archive.Put(ctx, s.AdID, s.Condition, s.CapturedAt, []byte(s.Body))
		if err != nil {
			logger.Warn("snapshot archive failed",
				"ad_id", s.AdID,
				"condition", s.Condition,
				"error", err.Error(),
			)
			continue
		}
		s.ArchiveKey = key
		s.Body = ""
	}
	return snaps, nil
}
