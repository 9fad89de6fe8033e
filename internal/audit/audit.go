package audit

import (
	"context"
	"fmt"
	"sort"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/store"
	"inventory-service/internal/util"

	"go.uber.org/zap"
)

const (
	DefaultMaxPerCollection = 1000
	DefaultRetentionDays    = 90
	DefaultQueryLimit       = 100
	statisticsSample        = 500
	recentActivitySize      = 10
)

// Entry is one mutation to record
type Entry struct {
	Action     string
	Collection string
	DocumentID string
	Data       any
	Metadata   map[string]any
}

// Result is the outcome of a best-effort audit write. Callers are free
// to discard it; a failed write never fails the operation being audited.
type Result struct {
	ID  string
	Err error
}

func (r Result) OK() bool {
	return r.Err == nil
}

// Filter narrows Query
type Filter struct {
	Collection string
	Action     string
	Limit      int
}

// Statistics summarizes recent audit activity
type Statistics struct {
	TotalLogs        int                    `json:"totalLogs"`
	ActionCounts     map[string]int         `json:"actionCounts"`
	CollectionCounts map[string]int         `json:"collectionCounts"`
	ActivityByDay    map[string]int         `json:"activityByDay"`
	RecentActivity   []models.AuditLogEntry `json:"recentActivity"`
}

// RetentionReport counts entries removed by one retention run
type RetentionReport struct {
	ByCount int `json:"byCount"`
	ByAge   int `json:"byAge"`
}

// Writer appends write-once audit entries and enforces retention
type Writer struct {
	store            store.DocumentStore
	maxPerCollection int
	retentionDays    int
	now              func() time.Time
	logger           *zap.Logger
}

// NewWriter creates a new audit writer
func NewWriter(st store.DocumentStore, maxPerCollection, retentionDays int) *Writer {
	if maxPerCollection <= 0 {
		maxPerCollection = DefaultMaxPerCollection
	}
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return &Writer{
		store:            st,
		maxPerCollection: maxPerCollection,
		retentionDays:    retentionDays,
		now:              time.Now,
		logger:           util.GetLogger(),
	}
}

// SetClock replaces the clock used for createdAt and age cutoffs
func (w *Writer) SetClock(now func() time.Time) {
	w.now = now
}

// LogAction stores one entry. It never returns an error to the caller;
// failures are logged and reported in the Result.
func (w *Writer) LogAction(ctx context.Context, e Entry) Result {
	ctx, span := util.StartSpan(ctx, "AuditWriter.LogAction", e.Collection)
	defer span.End()

	metadata := e.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	doc := models.Document{
		"action":     e.Action,
		"collection": e.Collection,
		"documentId": nil,
		"data":       e.Data,
		"metadata":   metadata,
		"timestamp":  models.ServerTimestamp,
		"createdAt":  models.FormatTime(w.now()),
	}
	if e.DocumentID != "" {
		doc["documentId"] = e.DocumentID
	}

	id, err := w.store.Add(ctx, models.CollectionAuditLogs, doc)
	if err != nil {
		util.SpanError(span, err)
		util.AuditFailuresTotal.Inc()
		w.logger.Error("Failed to write audit log",
			zap.String("action", e.Action),
			zap.String("collection", e.Collection),
			zap.String("document_id", e.DocumentID),
			zap.Error(err),
		)
		return Result{Err: err}
	}

	util.AuditWritesTotal.WithLabelValues(e.Action).Inc()
	w.logger.Debug("Audit log created",
		zap.String("audit_id", id),
		zap.String("action", e.Action),
		zap.String("collection", e.Collection),
	)
	return Result{ID: id}
}

func (w *Writer) LogCreate(ctx context.Context, collection, documentID string, data any, metadata map[string]any) Result {
	return w.LogAction(ctx, Entry{Action: models.ActionCreate, Collection: collection, DocumentID: documentID, Data: data, Metadata: metadata})
}

// LogUpdate records an update; prior state travels in metadata["previousData"]
func (w *Writer) LogUpdate(ctx context.Context, collection, documentID string, data any, metadata map[string]any) Result {
	return w.LogAction(ctx, Entry{Action: models.ActionUpdate, Collection: collection, DocumentID: documentID, Data: data, Metadata: metadata})
}

func (w *Writer) LogDelete(ctx context.Context, collection, documentID string, data any, metadata map[string]any) Result {
	return w.LogAction(ctx, Entry{Action: models.ActionDelete, Collection: collection, DocumentID: documentID, Data: data, Metadata: metadata})
}

func (w *Writer) LogView(ctx context.Context, collection, documentID string, metadata map[string]any) Result {
	return w.LogAction(ctx, Entry{Action: models.ActionView, Collection: collection, DocumentID: documentID, Metadata: metadata})
}

func (w *Writer) LogRestore(ctx context.Context, collection string, data any, metadata map[string]any) Result {
	return w.LogAction(ctx, Entry{Action: models.ActionRestore, Collection: collection, Data: data, Metadata: metadata})
}

// Query returns entries newest first
func (w *Writer) Query(ctx context.Context, f Filter) ([]models.AuditLogEntry, error) {
	ctx, span := util.StartSpan(ctx, "AuditWriter.Query", f.Collection)
	defer span.End()

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	q := store.Query{OrderBy: "timestamp", Descending: true, Limit: limit}
	if f.Collection != "" {
		q = q.Where("collection", f.Collection)
	}
	if f.Action != "" {
		q = q.Where("action", f.Action)
	}

	docs, err := w.store.Query(ctx, models.CollectionAuditLogs, q)
	if err != nil {
		util.SpanError(span, err)
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}

	entries := make([]models.AuditLogEntry, 0, len(docs))
	for _, d := range docs {
		entries = append(entries, models.AuditLogEntryFromDocument(d))
	}
	return entries, nil
}

// Statistics summarizes the most recent entries
func (w *Writer) Statistics(ctx context.Context) (*Statistics, error) {
	entries, err := w.Query(ctx, Filter{Limit: statisticsSample})
	if err != nil {
		return nil, err
	}

	stats := &Statistics{
		TotalLogs:        len(entries),
		ActionCounts:     make(map[string]int),
		CollectionCounts: make(map[string]int),
		ActivityByDay:    make(map[string]int),
	}
	for _, e := range entries {
		stats.ActionCounts[e.Action]++
		stats.CollectionCounts[e.Collection]++
		if ts, err := models.ParseTime(e.Timestamp); err == nil {
			stats.ActivityByDay[ts.Format("Mon Jan 02 2006")]++
		}
	}

	recent := len(entries)
	if recent > recentActivitySize {
		recent = recentActivitySize
	}
	stats.RecentActivity = entries[:recent]
	return stats, nil
}

// PruneCollection keeps the newest keep entries for collection and
// deletes the rest in one batch
func (w *Writer) PruneCollection(ctx context.Context, collection string, keep int) (int, error) {
	ctx, span := util.StartSpan(ctx, "AuditWriter.PruneCollection", collection)
	defer span.End()

	if keep <= 0 {
		keep = w.maxPerCollection
	}

	docs, err := w.store.Query(ctx, models.CollectionAuditLogs,
		store.Query{OrderBy: "timestamp", Descending: true}.Where("collection", collection))
	if err != nil {
		util.SpanError(span, err)
		return 0, fmt.Errorf("failed to list audit logs for %s: %w", collection, err)
	}
	if len(docs) <= keep {
		return 0, nil
	}

	batch := store.NewBatch()
	for _, d := range docs[keep:] {
		batch.Delete(models.CollectionAuditLogs, d.ID())
	}
	if err := w.store.Commit(ctx, batch); err != nil {
		util.SpanError(span, err)
		return 0, fmt.Errorf("failed to prune audit logs for %s: %w", collection, err)
	}

	util.AuditEntriesPrunedTotal.WithLabelValues("count").Add(float64(batch.Len()))
	w.logger.Info("Pruned audit logs",
		zap.String("collection", collection),
		zap.Int("deleted", batch.Len()),
	)
	return batch.Len(), nil
}

// PruneOlderThan deletes entries whose timestamp is older than days
func (w *Writer) PruneOlderThan(ctx context.Context, days int) (int, error) {
	ctx, span := util.StartSpan(ctx, "AuditWriter.PruneOlderThan")
	defer span.End()

	if days <= 0 {
		days = w.retentionDays
	}
	cutoff := w.now().AddDate(0, 0, -days)

	docs, err := w.store.Query(ctx, models.CollectionAuditLogs, store.Query{OrderBy: "timestamp"})
	if err != nil {
		util.SpanError(span, err)
		return 0, fmt.Errorf("failed to list audit logs: %w", err)
	}

	batch := store.NewBatch()
	for _, d := range docs {
		e := models.AuditLogEntryFromDocument(d)
		ts, err := models.ParseTime(e.Timestamp)
		if err != nil {
			continue
		}
		if !ts.Before(cutoff) {
			break
		}
		batch.Delete(models.CollectionAuditLogs, e.ID)
	}
	if batch.Len() == 0 {
		return 0, nil
	}

	if err := w.store.Commit(ctx, batch); err != nil {
		util.SpanError(span, err)
		return 0, fmt.Errorf("failed to delete old audit logs: %w", err)
	}

	util.AuditEntriesPrunedTotal.WithLabelValues("age").Add(float64(batch.Len()))
	w.logger.Info("Deleted old audit log entries",
		zap.Int("deleted", batch.Len()),
		zap.Int("days_kept", days),
	)
	return batch.Len(), nil
}

// Collections lists every collection that has audit entries
func (w *Writer) Collections(ctx context.Context) ([]string, error) {
	docs, err := w.store.List(ctx, models.CollectionAuditLogs)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	seen := make(map[string]bool)
	for _, d := range docs {
		if c := models.ToString(d["collection"]); c != "" {
			seen[c] = true
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

// RunRetention applies the per-collection cap and then the age cutoff
func (w *Writer) RunRetention(ctx context.Context) (RetentionReport, error) {
	var report RetentionReport

	collections, err := w.Collections(ctx)
	if err != nil {
		return report, err
	}
	for _, c := range collections {
		n, err := w.PruneCollection(ctx, c, w.maxPerCollection)
		if err != nil {
			return report, err
		}
		report.ByCount += n
	}

	n, err := w.PruneOlderThan(ctx, w.retentionDays)
	if err != nil {
		return report, err
	}
	report.ByAge = n
	return report, nil
}
