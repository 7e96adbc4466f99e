package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Retrier redelivers failed notifications
type Retrier interface {
	RetryFailed(ctx context.Context, maxAttempts, batch int) (int, error)
}

// RetryConfig holds notification retry settings
type RetryConfig struct {
	Interval    time.Duration
	MaxAttempts int
	BatchSize   int
}

// NotificationRetryWorker periodically redelivers FAILED notifications
type NotificationRetryWorker struct {
	retrier Retrier
	config  RetryConfig
	logger  *zap.Logger

	mu   sync.Mutex
	done chan struct{}
	stop context.CancelFunc
}

// NewNotificationRetryWorker creates a retry worker. Zero config values
// fall back to a one minute interval, three attempts and batches of 50.
func NewNotificationRetryWorker(retrier Retrier, config RetryConfig, logger *zap.Logger) *NotificationRetryWorker {
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	return &NotificationRetryWorker{
		retrier: retrier,
		config:  config,
		logger:  logger,
	}
}

// Name returns the worker name
func (w *NotificationRetryWorker) Name() string {
	return "notification-retry"
}

// Start begins the retry loop in the background
func (w *NotificationRetryWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done != nil {
		return fmt.Errorf("%s already started", w.Name())
	}

	ctx, cancel := context.WithCancel(ctx)
	w.stop = cancel
	w.done = make(chan struct{})
	go w.run(ctx, w.done)
	return nil
}

// Stop ends the loop and waits for an in-flight pass to finish
func (w *NotificationRetryWorker) Stop() error {
	w.mu.Lock()
	done, stop := w.done, w.stop
	w.done, w.stop = nil, nil
	w.mu.Unlock()

	if done == nil {
		return nil
	}
	stop()
	<-done
	return nil
}

func (w *NotificationRetryWorker) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.pass(ctx)
		}
	}
}

func (w *NotificationRetryWorker) pass(ctx context.Context) {
	delivered, err := w.retrier.RetryFailed(ctx, w.config.MaxAttempts, w.config.BatchSize)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("Notification retry pass failed", zap.Error(err))
		}
		return
	}
	if delivered > 0 {
		w.logger.Info("Redelivered notifications", zap.Int("delivered", delivered))
	}
}
