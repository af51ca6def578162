package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/skintrend/internal/domain"
)

const (
	jsonlContentType = "application/x-ndjson"
	// multipartThreshold switches uploads to the multipart manager.
	multipartThreshold = 8 * 1024 * 1024
)

// SnapshotRangeStore is the slice of domain.SnapshotStore the archiver reads.
type SnapshotRangeStore interface {
	ListRange(ctx context.Context, from, to time.Time) ([]domain.PriceSnapshot, error)
}

// SnapshotArchiver implements domain.Archiver. It serialises one UTC day of
// price snapshots to JSONL and uploads it to
// archive/price_snapshots/YYYY-MM-DD.jsonl. Rows are never deleted from the
// primary store.
type SnapshotArchiver struct {
	writer    domain.BlobWriter
	snapshots SnapshotRangeStore
	audit     domain.AuditStore
}

// NewSnapshotArchiver creates a SnapshotArchiver. audit may be nil.
func NewSnapshotArchiver(writer domain.BlobWriter, snapshots SnapshotRangeStore, audit domain.AuditStore) *SnapshotArchiver {
	return &SnapshotArchiver{writer: writer, snapshots: snapshots, audit: audit}
}

// snapshotRecord is the archived line format.
type snapshotRecord struct {
	ID        int64     `json:"id"`
	AssetID   string    `json:"asset_id"`
	Price     string    `json:"price"`
	BidPrice  string    `json:"bid_price"`
	AskPrice  string    `json:"ask_price"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// ArchiveSnapshots uploads the snapshots created during the UTC day ending at
// dayEnd (truncated to midnight). An empty day uploads nothing and returns 0.
func (a *SnapshotArchiver) ArchiveSnapshots(ctx context.Context, dayEnd time.Time) (int64, error) {
	to := dayEnd.UTC().Truncate(24 * time.Hour)
	from := to.AddDate(0, 0, -1)

	snaps, err := a.snapshots.ListRange(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive snapshots query: %w", err)
	}
	if len(snaps) == 0 {
		return 0, nil
	}

	records := make([]snapshotRecord, len(snaps))
	for i, s := range snaps {
		records[i] = snapshotRecord{
			ID:        s.ID,
			AssetID:   s.AssetID,
			Price:     s.Price.StringFixed(domain.MoneyPlaces),
			BidPrice:  s.BidPrice.StringFixed(domain.MoneyPlaces),
			AskPrice:  s.AskPrice.StringFixed(domain.MoneyPlaces),
			Source:    s.Source,
			CreatedAt: s.CreatedAt.UTC(),
		}
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive snapshots marshal: %w", err)
	}

	path := archivePath("price_snapshots", from)
	if len(buf) >= multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), jsonlContentType)
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive snapshots upload: %w", err)
	}

	count := int64(len(snaps))
	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive.price_snapshots", map[string]any{
			"path":  path,
			"count": count,
			"day":   from.Format(time.DateOnly),
		}); err != nil {
			return count, fmt.Errorf("s3blob: archive snapshots audit log: %w", err)
		}
	}
	return count, nil
}

// archivePath builds the object key for one day of archived rows.
//
//	archive/price_snapshots/2025-01-31.jsonl
func archivePath(kind string, day time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, day.Format(time.DateOnly))
}

// marshalJSONL encodes records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*SnapshotArchiver)(nil)
