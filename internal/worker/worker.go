package worker

import (
	"context"
	"time"

	"inventory-service/internal/audit"
	"inventory-service/internal/broker"
	"inventory-service/internal/feed"
	"inventory-service/internal/notify"
	"inventory-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// RetentionWorker periodically trims the audit log and notification history
type RetentionWorker struct {
	audit      *audit.Writer
	history    *notify.History
	historyMax int
	interval   time.Duration
	logger     *zap.Logger
}

// NewRetentionWorker creates a new retention worker
func NewRetentionWorker(a *audit.Writer, h *notify.History, historyMax int, interval time.Duration) *RetentionWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	if historyMax <= 0 {
		historyMax = notify.DefaultHistoryMax
	}
	return &RetentionWorker{
		audit:      a,
		history:    h,
		historyMax: historyMax,
		interval:   interval,
		logger:     util.GetLogger(),
	}
}

// Start runs once immediately and then on every tick until ctx is done
func (w *RetentionWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting retention worker", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.RunOnce(ctx)
		select {
		case <-ctx.Done():
			w.logger.Info("Stopping retention worker")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce applies both retention policies. Failures are logged.
func (w *RetentionWorker) RunOnce(ctx context.Context) (audit.RetentionReport, int) {
	report, err := w.audit.RunRetention(ctx)
	if err != nil {
		w.logger.Warn("Audit retention failed", zap.Error(err))
	}

	pruned, err := w.history.Prune(ctx, w.historyMax)
	if err != nil {
		w.logger.Warn("Notification history cleanup failed", zap.Error(err))
	}

	if report.ByCount+report.ByAge+pruned > 0 {
		w.logger.Info("Retention run complete",
			zap.Int("audit_by_count", report.ByCount),
			zap.Int("audit_by_age", report.ByAge),
			zap.Int("history_pruned", pruned),
		)
	}
	return report, pruned
}

// FeedWorker relays change events written by other processes into the
// local hub so subscribers here see them too
type FeedWorker struct {
	consumer *broker.Consumer
	hub      feed.Publisher
	origin   string
	logger   *zap.Logger
}

// NewFeedWorker creates a new feed worker. Events carrying origin are
// skipped since the local hub already saw them.
func NewFeedWorker(consumer *broker.Consumer, hub feed.Publisher, origin string) *FeedWorker {
	return &FeedWorker{
		consumer: consumer,
		hub:      hub,
		origin:   origin,
		logger:   util.GetLogger(),
	}
}

// Start starts the worker
func (w *FeedWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting feed worker", zap.String("origin", w.origin))
	return w.consumer.StartConsuming(ctx, w.HandleMessage)
}

// HandleMessage decodes one change event and republishes it locally.
// Undecodable messages are dropped so they do not block the partition.
func (w *FeedWorker) HandleMessage(ctx context.Context, msg kafka.Message) error {
	event, err := broker.DecodeChangeEvent(msg)
	if err != nil {
		w.logger.Warn("Dropping change event", zap.Int64("offset", msg.Offset), zap.Error(err))
		return nil
	}
	if event.Origin == w.origin {
		return nil
	}

	w.hub.PublishChange(ctx, event)
	util.ChangeEventsTotal.WithLabelValues("remote").Inc()
	return nil
}

// Stop stops the worker
func (w *FeedWorker) Stop() error {
	w.logger.Info("Stopping feed worker")
	return w.consumer.Close()
}
