package llmcall

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// SinkConfig configures the file sink.
type SinkConfig struct {
	Path          string        // JSONL file, appended to
	BatchSize     int           // Flush after N calls (default: 20)
	FlushInterval time.Duration // Or after duration (default: 2s)
	QueueSize     int           // Buffer size (default: 256)
	Logger        *slog.Logger
}

// Sink batches call records and appends them to a JSONL file.
type Sink struct {
	path   string
	logger *slog.Logger

	batchSize     int
	flushInterval time.Duration

	queue   chan *Call
	flushCh chan chan error

	wg        sync.WaitGroup
	closeOnce sync.Once
	closed    chan struct{}
}

// NewSink creates a new file sink. Call Start before sending.
func NewSink(cfg SinkConfig) *Sink {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Sink{
		path:          cfg.Path,
		logger:        cfg.Logger,
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		queue:         make(chan *Call, cfg.QueueSize),
		flushCh:       make(chan chan error),
		closed:        make(chan struct{}),
	}
}

// Path returns the JSONL file the sink writes to.
func (s *Sink) Path() string {
	return s.path
}

// Start begins processing records. The sink stops when ctx is cancelled or
// Stop is called; either way pending records are flushed.
func (s *Sink) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop flushes pending records and shuts the sink down.
func (s *Sink) Stop() {
	s.markClosed()
	s.wg.Wait()
}

func (s *Sink) markClosed() {
	s.closeOnce.Do(func() { close(s.closed) })
}

// Send queues a record (fire-and-forget). Records sent after Stop are dropped.
func (s *Sink) Send(call *Call) {
	if call == nil {
		return
	}
	select {
	case <-s.closed:
		s.logger.Warn("sink closed, dropping llm call record", "id", call.ID)
	case s.queue <- call:
	}
}

// Flush writes everything queued so far and waits for it.
func (s *Sink) Flush(ctx context.Context) error {
	done := make(chan error, 1)
	select {
	case s.flushCh <- done:
	case <-s.closed:
		return fmt.Errorf("sink closed")
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sink) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	batch := make([]*Call, 0, s.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := s.write(batch)
		if err != nil {
			s.logger.Error("failed to write llm call records", "count", len(batch), "error", err)
		}
		batch = batch[:0]
		return err
	}
	drain := func() {
		for {
			select {
			case call := <-s.queue:
				batch = append(batch, call)
			default:
				return
			}
		}
	}

	for {
		select {
		case call := <-s.queue:
			batch = append(batch, call)
			if len(batch) >= s.batchSize {
				flush()
			}
		case done := <-s.flushCh:
			drain()
			done <- flush()
		case <-ticker.C:
			flush()
		case <-s.closed:
			drain()
			flush()
			return
		case <-ctx.Done():
			s.markClosed()
			drain()
			flush()
			return
		}
	}
}

func (s *Sink) write(batch []*Call) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, call := range batch {
		if err := enc.Encode(call); err != nil {
			return err
		}
	}
	return nil
}
