package recorder

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	ErrQueueFull      = errors.New("recorder queue full")
	ErrClosed         = errors.New("recorder closed")
	ErrNotStarted     = errors.New("recorder not started")
	ErrAlreadyStarted = errors.New("recorder already started")
)

// Writer appends records as JSON lines from a buffered queue. The file is
// rotated by size and age.
type Writer struct {
	cfg  Config
	out  io.WriteCloser
	ch   chan Record
	wg   sync.WaitGroup
	mu   sync.Mutex
	err  error
	now  func() time.Time
	lost uint64

	started uint32
	closed  uint32
}

// NewWriter creates a writer and ensures the target directory exists.
func NewWriter(cfg Config) (*Writer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, err
	}
	out := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	return &Writer{
		cfg: cfg,
		out: out,
		ch:  make(chan Record, cfg.QueueSize),
		now: time.Now,
	}, nil
}

// Start runs the writer loop in a new goroutine.
func (w *Writer) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapUint32(&w.started, 0, 1) {
		return ErrAlreadyStarted
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
	return nil
}

// Close drains the queue and closes the file.
func (w *Writer) Close() error {
	if atomic.CompareAndSwapUint32(&w.closed, 0, 1) {
		close(w.ch)
	}
	w.wg.Wait()
	if atomic.LoadUint32(&w.started) == 0 {
		_ = w.out.Close()
	}
	return w.Err()
}

// Err returns the first error observed by the writer, if any.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Lost returns how many records were dropped because the queue was full.
func (w *Writer) Lost() uint64 {
	return atomic.LoadUint64(&w.lost)
}

// TryAppend enqueues a record without blocking. A zero Time is stamped now.
func (w *Writer) TryAppend(rec Record) error {
	if atomic.LoadUint32(&w.closed) != 0 {
		return ErrClosed
	}
	if atomic.LoadUint32(&w.started) == 0 {
		return ErrNotStarted
	}
	if err := w.Err(); err != nil {
		return err
	}
	if rec.Time.IsZero() {
		rec.Time = w.now()
	}

	select {
	case w.ch <- rec:
		return nil
	default:
		atomic.AddUint64(&w.lost, 1)
		return ErrQueueFull
	}
}

// Record enqueues kind with fields. Failures are logged and dropped.
func (w *Writer) Record(kind string, fields map[string]any) {
	if w == nil {
		return
	}
	if err := w.TryAppend(Record{Kind: kind, Fields: fields}); err != nil {
		logs.Errorf("record %s, err: %+v", kind, err)
	}
}

func (w *Writer) run(ctx context.Context) {
	defer func() {
		if err := w.out.Close(); err != nil {
			w.setErr(err)
		}
	}()

	for {
		select {
		case rec, ok := <-w.ch:
			if !ok {
				return
			}
			w.write(rec)
		case <-ctx.Done():
			for {
				select {
				case rec, ok := <-w.ch:
					if !ok {
						return
					}
					w.write(rec)
				default:
					return
				}
			}
		}
	}
}

func (w *Writer) write(rec Record) {
	line, err := rec.encode()
	if err != nil {
		logs.Errorf("encode %s record, err: %+v", rec.Kind, err)
		return
	}
	if _, err := w.out.Write(line); err != nil {
		w.setErr(err)
	}
}

func (w *Writer) setErr(err error) {
	w.mu.Lock()
	if w.err == nil {
		w.err = err
	}
	w.mu.Unlock()
}
