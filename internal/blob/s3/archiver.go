package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lachlanbr/shortbot/internal/domain"
)

// ArchiveImpl implements domain.Archiver by querying the transaction store
// for records older than a cutoff, serializing them to JSONL, uploading the
// result to object storage, and then deleting the archived rows from the
// primary store.
//
// Deletion happens only after the upload succeeds, so a failed upload leaves
// the transaction log untouched.
type ArchiveImpl struct {
	writer domain.BlobWriter
	txs    domain.TransactionStore
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(writer domain.BlobWriter, txs domain.TransactionStore, audit domain.AuditStore, logger *slog.Logger) *ArchiveImpl {
	return &ArchiveImpl{
		writer: writer,
		txs:    txs,
		audit:  audit,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

var _ domain.Archiver = (*ArchiveImpl)(nil)

// ArchiveTransactions collects all transactions strictly older than the
// cutoff, uploads them as a JSONL file at
// archive/transactions/YYYY-MM-DD.jsonl, deletes the archived rows from the
// store, and records the operation in the audit log. The number of archived
// records is returned.
func (a *ArchiveImpl) ArchiveTransactions(ctx context.Context, before time.Time) (int64, error) {
	records, err := a.txs.ListBefore(ctx, before, 0)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive transactions query: %w", err)
	}
	if len(records) == 0 {
		a.logger.Info("no transactions to archive",
			slog.Time("before", before))
		return 0, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive transactions marshal: %w", err)
	}

	path := archivePath(before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive transactions upload: %w", err)
	}

	deleted, err := a.txs.DeleteBefore(ctx, before)
	if err != nil {
		return int64(len(records)), fmt.Errorf("s3blob: archive transactions delete: %w", err)
	}

	a.logger.Info("archived transactions",
		slog.String("path", path),
		slog.Int("count", len(records)),
		slog.Int64("deleted", deleted))

	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive.transactions", map[string]any{
			"path":    path,
			"count":   len(records),
			"deleted": deleted,
			"before":  before.Format(time.RFC3339),
		}); err != nil {
			return int64(len(records)), fmt.Errorf("s3blob: archive transactions audit log: %w", err)
		}
	}

	return int64(len(records)), nil
}

// archivePath builds the object key for an archive file, partitioned by the
// cutoff date.
//
//	archive/transactions/2026-01-31.jsonl
func archivePath(before time.Time) string {
	return fmt.Sprintf("archive/transactions/%s.jsonl", before.Format("2006-01-02"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
// Each element is marshalled as a single compact JSON line followed by '\n'.
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
