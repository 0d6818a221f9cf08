// Package analytics persists request logs asynchronously so the hot path
// never waits on the database.
package analytics

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/flowstate-app/gateway/internal/store"
	"github.com/flowstate-app/gateway/internal/store/model"
)

// Ingestor handles the asynchronous persistence of request logs.
type Ingestor interface {
	Log(log *model.RequestLog)
	Start(ctx context.Context)
	Stop()
}

type ingestor struct {
	logger    *zap.Logger
	repo      store.Repository
	logChan   chan *model.RequestLog
	batchSize int
	flushTime time.Duration

	mu     sync.RWMutex
	closed bool
}

func NewIngestor(logger *zap.Logger, repo store.Repository) Ingestor {
	return &ingestor{
		logger:    logger,
		repo:      repo,
		logChan:   make(chan *model.RequestLog, 10000),
		batchSize: 50,
		flushTime: 5 * time.Second,
	}
}

// Log enqueues without blocking; when the buffer is full, the log is dropped
// rather than stalling a chat response. A streaming handler can outlive
// shutdown, so logs arriving after Stop are dropped instead of panicking on
// the closed channel.
func (i *ingestor) Log(log *model.RequestLog) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return
	}
	select {
	case i.logChan <- log:
	default:
		i.logger.Warn("analytics buffer full, dropping log", zap.String("request_id", log.ID))
	}
}

func (i *ingestor) Start(ctx context.Context) {
	go i.worker(ctx)
}

func (i *ingestor) Stop() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return
	}
	i.closed = true
	close(i.logChan)
}

func (i *ingestor) worker(ctx context.Context) {
	batch := make([]*model.RequestLog, 0, i.batchSize)
	ticker := time.NewTicker(i.flushTime)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		for _, log := range batch {
			if err := i.repo.Requests().Log(context.Background(), log); err != nil {
				i.logger.Error("failed to persist request log", zap.String("id", log.ID), zap.Error(err))
			}
		}
		batch = batch[:0]
	}

	for {
		select {
		case log, ok := <-i.logChan:
			if !ok {
				flush()
				return
			}
			batch = append(batch, log)
			if len(batch) >= i.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			flush()
			return
		}
	}
}
