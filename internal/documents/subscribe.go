package documents

import (
	"context"

	"inventory-service/internal/models"
	"inventory-service/internal/store"

	"go.uber.org/zap"
)

// Subscribe delivers the whole collection, newest first, to callback now
// and after every change. Reload errors are logged and the subscription
// stays up. The returned func stops it.
func (s *Service) Subscribe(ctx context.Context, collection string, callback func([]models.Document)) func() {
	ctx, cancel := context.WithCancel(ctx)
	events, unsubscribe := s.hub.Subscribe(collection)

	deliver := func() {
		docs, err := s.store.Query(ctx, collection, store.Query{OrderBy: "createdAt", Descending: true})
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Error("Error in subscription",
					zap.String("collection", collection),
					zap.Error(err),
				)
			}
			return
		}
		callback(docs)
	}

	go func() {
		defer unsubscribe()
		deliver()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				deliver()
			}
		}
	}()

	return cancel
}
