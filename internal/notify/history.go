package notify

import (
	"context"
	"fmt"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/store"
	"inventory-service/internal/util"

	"go.uber.org/zap"
)

const (
	DefaultHistoryMax   = 500
	defaultHistoryLimit = 100
	statisticsSample    = 200
	recentHistorySize   = 5
)

// HistoryInput is a toast or status message to keep
type HistoryInput struct {
	Type     string         `json:"type"`
	Message  string         `json:"message" binding:"required"`
	Metadata map[string]any `json:"metadata"`
	Source   string         `json:"source"`
}

// HistoryFilter narrows History.List
type HistoryFilter struct {
	Type       string
	UnreadOnly bool
	Limit      int
}

// HistoryStatistics summarizes recent history
type HistoryStatistics struct {
	TotalNotifications  int                   `json:"totalNotifications"`
	UnreadCount         int                   `json:"unreadCount"`
	TypeCounts          map[string]int        `json:"typeCounts"`
	RecentNotifications []models.HistoryEntry `json:"recentNotifications"`
	NotificationsByDay  map[string]int        `json:"notificationsByDay"`
}

// History keeps a bounded log of messages shown to users
type History struct {
	store  store.DocumentStore
	max    int
	now    func() time.Time
	logger *zap.Logger
}

func NewHistory(st store.DocumentStore, max int) *History {
	if max <= 0 {
		max = DefaultHistoryMax
	}
	return &History{
		store:  st,
		max:    max,
		now:    time.Now,
		logger: util.GetLogger(),
	}
}

func (h *History) SetClock(now func() time.Time) {
	h.now = now
}

// Store saves an unread entry. Storage failures are logged and yield an
// empty id; they never fail the caller.
func (h *History) Store(ctx context.Context, in HistoryInput) string {
	entryType := in.Type
	if entryType == "" {
		entryType = "info"
	}
	source := in.Source
	if source == "" {
		source = "app"
	}
	metadata := in.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	id, err := h.store.Add(ctx, models.CollectionNotificationHistory, models.Document{
		"type":      entryType,
		"message":   in.Message,
		"metadata":  metadata,
		"timestamp": models.ServerTimestamp,
		"createdAt": models.FormatTime(h.now()),
		"read":      false,
		"source":    source,
	})
	if err != nil {
		h.logger.Error("Error storing notification", zap.Error(err))
		return ""
	}
	h.logger.Debug("Notification stored", zap.String("id", id))
	return id
}

// List returns entries newest first
func (h *History) List(ctx context.Context, f HistoryFilter) ([]models.HistoryEntry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	q := store.Query{OrderBy: "timestamp", Descending: true, Limit: limit}
	if f.Type != "" {
		q = q.Where("type", f.Type)
	}
	if f.UnreadOnly {
		q = q.Where("read", false)
	}

	docs, err := h.store.Query(ctx, models.CollectionNotificationHistory, q)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch notification history: %w", err)
	}
	out := make([]models.HistoryEntry, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.HistoryEntryFromDocument(d))
	}
	return out, nil
}

func (h *History) MarkAsRead(ctx context.Context, id string) error {
	if id == "" {
		return errEmptyID
	}
	err := h.store.Update(ctx, models.CollectionNotificationHistory, id, models.Document{
		"read":   true,
		"readAt": models.ServerTimestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to mark notification %s as read: %w", id, err)
	}
	return nil
}

// MarkAllAsRead marks every unread entry in one batch and returns how many
func (h *History) MarkAllAsRead(ctx context.Context) (int, error) {
	docs, err := h.store.Query(ctx, models.CollectionNotificationHistory, store.Query{}.Where("read", false))
	if err != nil {
		return 0, fmt.Errorf("failed to list unread notifications: %w", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	batch := store.NewBatch()
	for _, d := range docs {
		batch.Update(models.CollectionNotificationHistory, d.ID(), models.Document{
			"read":   true,
			"readAt": models.ServerTimestamp,
		})
	}
	if err := h.store.Commit(ctx, batch); err != nil {
		return 0, fmt.Errorf("failed to mark notifications as read: %w", err)
	}
	h.logger.Info("Marked notifications as read", zap.Int("count", batch.Len()))
	return batch.Len(), nil
}

// Prune keeps the newest keep entries, max when keep is not positive
func (h *History) Prune(ctx context.Context, keep int) (int, error) {
	if keep <= 0 {
		keep = h.max
	}
	docs, err := h.store.Query(ctx, models.CollectionNotificationHistory,
		store.Query{OrderBy: "timestamp", Descending: true})
	if err != nil {
		return 0, fmt.Errorf("failed to list notification history: %w", err)
	}
	if len(docs) <= keep {
		return 0, nil
	}

	batch := store.NewBatch()
	for _, d := range docs[keep:] {
		batch.Delete(models.CollectionNotificationHistory, d.ID())
	}
	if err := h.store.Commit(ctx, batch); err != nil {
		return 0, fmt.Errorf("failed to prune notification history: %w", err)
	}
	h.logger.Info("Cleaned up old notifications", zap.Int("deleted", batch.Len()))
	return batch.Len(), nil
}

// Clear deletes every entry
func (h *History) Clear(ctx context.Context) (int, error) {
	docs, err := h.store.List(ctx, models.CollectionNotificationHistory)
	if err != nil {
		return 0, fmt.Errorf("failed to list notification history: %w", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	batch := store.NewBatch()
	for _, d := range docs {
		batch.Delete(models.CollectionNotificationHistory, d.ID())
	}
	if err := h.store.Commit(ctx, batch); err != nil {
		return 0, fmt.Errorf("failed to clear notification history: %w", err)
	}
	h.logger.Info("Deleted notifications", zap.Int("count", batch.Len()))
	return batch.Len(), nil
}

func (h *History) Statistics(ctx context.Context) (*HistoryStatistics, error) {
	entries, err := h.List(ctx, HistoryFilter{Limit: statisticsSample})
	if err != nil {
		return nil, err
	}

	stats := &HistoryStatistics{
		TotalNotifications: len(entries),
		TypeCounts:         make(map[string]int),
		NotificationsByDay: make(map[string]int),
	}
	for _, e := range entries {
		if !e.Read {
			stats.UnreadCount++
		}
		stats.TypeCounts[e.Type]++

		stamp := e.Timestamp
		if stamp == "" {
			stamp = e.CreatedAt
		}
		if ts, err := models.ParseTime(stamp); err == nil {
			stats.NotificationsByDay[ts.Format("Mon Jan 02 2006")]++
		}
	}

	recent := len(entries)
	if recent > recentHistorySize {
		recent = recentHistorySize
	}
	stats.RecentNotifications = entries[:recent]
	return stats, nil
}
