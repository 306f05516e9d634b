package scheduler

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"
)

// ErrAlreadyRunning возвращается при повторном запуске планировщика.
var ErrAlreadyRunning = errors.New("scheduler already running")

// Cycler выполняет один цикл сверки.
type Cycler interface {
	RunCycle(ctx context.Context) (Report, error)
}

// Handle запускает циклы сверки по таймеру. Первый цикл выполняется сразу при старте.
type Handle struct {
	cycler   Cycler
	interval time.Duration
	logger   *log.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	last   Report
}

// NewHandle создает новый экземпляр Handle.
func NewHandle(cycler Cycler, interval time.Duration, logger *log.Logger) *Handle {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Handle{cycler: cycler, interval: interval, logger: logger}
}

// Start запускает фоновый цикл. Планировщик останавливается по Stop или при отмене ctx.
func (h *Handle) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		return ErrAlreadyRunning
	}
	if h.interval <= 0 {
		return errors.New("scheduler interval must be positive")
	}

	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.done = make(chan struct{})
	go h.loop(ctx, h.done)
	h.logger.Printf("scheduler started, interval %s", h.interval)
	return nil
}

func (h *Handle) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer h.release(done)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.tick(ctx)
		}
	}
}

// release сбрасывает состояние, если цикл завершился из-за отмены родительского контекста без Stop.
func (h *Handle) release(done chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done != done {
		return
	}
	h.cancel()
	h.cancel, h.done = nil, nil
}

func (h *Handle) tick(ctx context.Context) {
	report, err := h.cycler.RunCycle(ctx)
	switch {
	case errors.Is(err, ErrCycleInProgress):
		h.logger.Print("previous cycle still running, tick skipped")
	case err != nil && ctx.Err() == nil:
		h.logger.Printf("cycle failed: %v", err)
	}
	if err == nil {
		h.mu.Lock()
		h.last = report
		h.mu.Unlock()
	}
}

// Stop останавливает планировщик и дожидается завершения текущего цикла.
func (h *Handle) Stop() {
	h.mu.Lock()
	cancel, done := h.cancel, h.done
	h.cancel, h.done = nil, nil
	h.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	h.logger.Print("scheduler stopped")
}

// Running сообщает, запущен ли планировщик.
func (h *Handle) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancel != nil
}

// RunNow выполняет цикл вне расписания.
func (h *Handle) RunNow(ctx context.Context) (Report, error) {
	report, err := h.cycler.RunCycle(ctx)
	if err == nil {
		h.mu.Lock()
		h.last = report
		h.mu.Unlock()
	}
	return report, err
}

// LastReport возвращает отчет последнего успешного цикла.
func (h *Handle) LastReport() Report {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}
