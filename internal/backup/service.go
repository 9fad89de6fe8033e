package backup

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"inventory-service/internal/audit"
	"inventory-service/internal/auth"
	"inventory-service/internal/documents"
	"inventory-service/internal/models"
	"inventory-service/internal/store"
	"inventory-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	Version   = "1.0.0"
	CreatedBy = "Firework Factory App"
	TypeFull  = "full_backup"

	backupTimestampField = "_backup_timestamp"
	restoredAtField      = "_restored_at"
	restoredFromField    = "_restored_from_backup"

	// rough per-document size used by Statistics
	estimatedDocumentKB = 2
)

// ErrInvalidBackup is returned for snapshots that cannot be restored
var ErrInvalidBackup = errors.New("invalid backup data format")

// Auditor records backup activity
type Auditor interface {
	LogCreate(ctx context.Context, collection, documentID string, data any, metadata map[string]any) audit.Result
	LogDelete(ctx context.Context, collection, documentID string, data any, metadata map[string]any) audit.Result
	LogRestore(ctx context.Context, collection string, data any, metadata map[string]any) audit.Result
}

// RestoredCollection counts the documents written back into one collection
type RestoredCollection struct {
	Collection        string `json:"collection"`
	DocumentsRestored int    `json:"documentsRestored"`
}

// DataSize estimates the size of the tracked collections
type DataSize struct {
	TotalDocuments  int            `json:"totalDocuments"`
	Collections     map[string]int `json:"collections"`
	EstimatedSizeKB int            `json:"estimatedSizeKB"`
}

type Statistics struct {
	TotalBackups       int                    `json:"totalBackups"`
	LatestBackup       *models.BackupMetadata `json:"latestBackup"`
	OldestBackup       *models.BackupMetadata `json:"oldestBackup"`
	EstimatedDataSize  DataSize               `json:"estimatedDataSize"`
	CollectionsTracked int                    `json:"collectionsTracked"`
}

// Service snapshots and restores the tracked collections
type Service struct {
	docs        *documents.Service
	store       store.DocumentStore
	audit       Auditor
	collections []string
	now         func() time.Time
	logger      *zap.Logger
}

func NewService(docs *documents.Service, a Auditor) *Service {
	return &Service{
		docs:        docs,
		store:       docs.Store(),
		audit:       a,
		collections: append([]string(nil), models.TrackedCollections...),
		now:         time.Now,
		logger:      util.GetLogger(),
	}
}

func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// CreateFullBackup copies every tracked collection and records the
// backup's metadata under backups/backup_<unix ms>
func (s *Service) CreateFullBackup(ctx context.Context) (*models.Snapshot, error) {
	ctx, span := util.StartSpan(ctx, "BackupService.CreateFullBackup", models.CollectionBackups)
	defer span.End()

	now := s.now()
	meta := &models.BackupMetadata{
		Version:     Version,
		CreatedAt:   models.FormatTime(now),
		CreatedBy:   CreatedBy,
		Type:        TypeFull,
		Collections: append([]string(nil), s.collections...),
	}
	snap := &models.Snapshot{Metadata: meta, Data: make(map[string][]models.Document, len(s.collections))}

	for _, c := range s.collections {
		s.logger.Info("Backing up collection", zap.String("collection", c))
		docs, err := s.store.List(ctx, c)
		if err != nil {
			util.SpanError(span, err)
			util.BackupsTotal.WithLabelValues("create", "error").Inc()
			return nil, fmt.Errorf("backup failed: %s: %w", c, err)
		}
		tagged := make([]models.Document, 0, len(docs))
		for _, d := range docs {
			d[backupTimestampField] = models.FormatTime(now)
			tagged = append(tagged, d)
		}
		snap.Data[c] = tagged
	}

	id := fmt.Sprintf("backup_%d", now.UnixMilli())
	if err := s.store.Set(ctx, models.CollectionBackups, id, meta.Fields()); err != nil {
		util.SpanError(span, err)
		util.BackupsTotal.WithLabelValues("create", "error").Inc()
		return nil, fmt.Errorf("backup failed: storing metadata: %w", err)
	}
	meta.ID = id
	s.docs.Invalidate(ctx, models.CollectionBackups)

	s.audit.LogCreate(ctx, models.CollectionBackups, id, meta.Fields(), s.metadata(ctx, map[string]any{
		"action":              "backup_created",
		"description":         fmt.Sprintf("Full backup created with %d collections", len(meta.Collections)),
		"collectionsBackedUp": meta.Collections,
		"timestamp":           meta.CreatedAt,
	}))

	util.BackupsTotal.WithLabelValues("create", "ok").Inc()
	s.logger.Info("Full backup completed", zap.String("backup_id", id))
	return snap, nil
}

// RestoreFromBackup writes the selected collections back in one batch.
// With no selection every collection in the snapshot is restored; names
// missing from the snapshot are skipped. replaceExisting clears each
// collection before the batch is committed.
func (s *Service) RestoreFromBackup(ctx context.Context, snap *models.Snapshot, collections []string, replaceExisting bool) ([]RestoredCollection, error) {
	ctx, span := util.StartSpan(ctx, "BackupService.RestoreFromBackup")
	defer span.End()

	if snap == nil || snap.Data == nil {
		util.BackupsTotal.WithLabelValues("restore", "error").Inc()
		return nil, ErrInvalidBackup
	}
	if len(collections) == 0 {
		for c := range snap.Data {
			collections = append(collections, c)
		}
		sort.Strings(collections)
	}

	source := "unknown"
	if snap.Metadata != nil && snap.Metadata.CreatedAt != "" {
		source = snap.Metadata.CreatedAt
	}
	restoredAt := models.FormatTime(s.now())

	batch := store.NewBatch()
	restored := make([]RestoredCollection, 0, len(collections))
	for _, c := range collections {
		docs, ok := snap.Data[c]
		if !ok {
			s.logger.Warn("Collection not found in backup data", zap.String("collection", c))
			continue
		}

		if replaceExisting {
			if _, err := s.ClearCollection(ctx, c); err != nil {
				util.SpanError(span, err)
				util.BackupsTotal.WithLabelValues("restore", "error").Inc()
				return nil, err
			}
		}

		count := 0
		for _, d := range docs {
			if d == nil {
				continue
			}
			id := d.ID()
			if id == "" {
				id = uuid.New().String()
				s.logger.Warn("Backup document without id, restoring under a new one",
					zap.String("collection", c),
					zap.String("document_id", id),
				)
			}
			clean := d.Without("id", backupTimestampField)
			clean[restoredAtField] = restoredAt
			clean[restoredFromField] = source
			batch.Set(c, id, clean)
			count++
		}
		restored = append(restored, RestoredCollection{Collection: c, DocumentsRestored: count})
	}

	if err := s.store.Commit(ctx, batch); err != nil {
		util.SpanError(span, err)
		util.BackupsTotal.WithLabelValues("restore", "error").Inc()
		return nil, fmt.Errorf("restore failed: %w", err)
	}
	for _, r := range restored {
		s.docs.Invalidate(ctx, r.Collection)
	}

	s.logRestoration(ctx, snap.Metadata, restored)
	util.BackupsTotal.WithLabelValues("restore", "ok").Inc()
	s.logger.Info("Restore completed", zap.Int("collections", len(restored)), zap.Int("documents", batch.Len()))
	return restored, nil
}

// ClearCollection deletes every document in collection in one batch
func (s *Service) ClearCollection(ctx context.Context, collection string) (int, error) {
	docs, err := s.store.List(ctx, collection)
	if err != nil {
		return 0, fmt.Errorf("failed to clear %s: %w", collection, err)
	}
	batch := store.NewBatch()
	for _, d := range docs {
		batch.Delete(collection, d.ID())
	}
	if err := s.store.Commit(ctx, batch); err != nil {
		return 0, fmt.Errorf("failed to clear %s: %w", collection, err)
	}
	s.docs.Invalidate(ctx, collection)
	s.logger.Info("Collection cleared", zap.String("collection", collection), zap.Int("deleted", batch.Len()))
	return batch.Len(), nil
}

// History lists stored backups newest first
func (s *Service) History(ctx context.Context) ([]models.BackupMetadata, error) {
	docs, err := s.store.List(ctx, models.CollectionBackups)
	if err != nil {
		return nil, fmt.Errorf("failed to get backup history: %w", err)
	}
	out := make([]models.BackupMetadata, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.BackupMetadataFromDocument(d))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt > out[j].CreatedAt
	})
	return out, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, models.CollectionBackups, id); err != nil {
		util.BackupsTotal.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("failed to delete backup %s: %w", id, err)
	}
	s.docs.Invalidate(ctx, models.CollectionBackups)

	s.audit.LogDelete(ctx, models.CollectionBackups, id, nil, s.metadata(ctx, map[string]any{
		"action":      "backup_deleted",
		"description": fmt.Sprintf("Backup %s was deleted", id),
		"timestamp":   models.FormatTime(s.now()),
	}))
	util.BackupsTotal.WithLabelValues("delete", "ok").Inc()
	return nil
}

func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	backups, err := s.History(ctx)
	if err != nil {
		return nil, err
	}
	stats := &Statistics{
		TotalBackups:       len(backups),
		EstimatedDataSize:  s.dataSize(ctx),
		CollectionsTracked: len(s.collections),
	}
	if len(backups) > 0 {
		stats.LatestBackup = &backups[0]
		stats.OldestBackup = &backups[len(backups)-1]
	}
	return stats, nil
}

// dataSize returns zeros when any collection cannot be read
func (s *Service) dataSize(ctx context.Context) DataSize {
	size := DataSize{Collections: make(map[string]int, len(s.collections))}
	for _, c := range s.collections {
		docs, err := s.store.List(ctx, c)
		if err != nil {
			s.logger.Error("Error calculating data size", zap.String("collection", c), zap.Error(err))
			return DataSize{Collections: map[string]int{}}
		}
		size.Collections[c] = len(docs)
		size.TotalDocuments += len(docs)
	}
	size.EstimatedSizeKB = size.TotalDocuments * estimatedDocumentKB
	return size
}

func (s *Service) logRestoration(ctx context.Context, source *models.BackupMetadata, restored []RestoredCollection) {
	total := 0
	for _, r := range restored {
		total += r.DocumentsRestored
	}
	var sourceCreatedAt any
	if source != nil {
		sourceCreatedAt = source.CreatedAt
	}

	res := s.audit.LogRestore(ctx, models.CollectionBackups, map[string]any{
		"sourceBackup":        source,
		"restoredCollections": restored,
		"totalDocuments":      total,
	}, s.metadata(ctx, map[string]any{
		"action":                "backup_restored",
		"description":           fmt.Sprintf("Data restored from backup: %d documents across %d collections", total, len(restored)),
		"restorationDetails":    restored,
		"sourceBackupCreatedAt": sourceCreatedAt,
		"timestamp":             models.FormatTime(s.now()),
	}))
	if !res.OK() {
		s.logger.Warn("Restore succeeded but could not be logged", zap.Error(res.Err))
	}
}

func (s *Service) metadata(ctx context.Context, fields map[string]any) map[string]any {
	fields["userId"] = auth.UserID(ctx)
	return fields
}
