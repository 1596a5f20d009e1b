// Package outcome records how a single request ended.
//
// A Logger is started when a request enters the page pipeline and is
// finalized exactly once by Success, Miss or Error. The first call wins;
// later calls, including concurrent ones, are no-ops and return false.
package outcome

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"
)

// Level is the severity tag of a record.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Kind says how the request ended.
type Kind string

const (
	KindSuccess Kind = "success"
	KindMiss    Kind = "miss"
	KindError   Kind = "error"
)

// Fields identify the request a record belongs to.
type Fields struct {
	Route     string
	Slug      string
	Locale    string
	RequestID string
}

// Extra carries renderer details attached to a successful record.
type Extra struct {
	Status    int
	Source    string
	ETag      string
	Blocks    int
	Fallbacks []string
}

// Record is one finalized outcome.
type Record struct {
	Route      string    `json:"route"`
	Slug       string    `json:"slug,omitempty"`
	Locale     string    `json:"locale,omitempty"`
	RequestID  string    `json:"requestId,omitempty"`
	Kind       Kind      `json:"outcome"`
	Level      Level     `json:"level"`
	Status     int       `json:"status"`
	DurationMs float64   `json:"durationMs"`
	Message    string    `json:"message,omitempty"`
	ErrorStack string    `json:"errorStack,omitempty"`
	Source     string    `json:"source,omitempty"`
	ETag       string    `json:"etag,omitempty"`
	Blocks     int       `json:"blocks,omitempty"`
	Fallbacks  []string  `json:"fallbacks,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Sink receives finalized records.
type Sink interface {
	Emit(ctx context.Context, rec Record)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, rec Record)

// Emit calls f.
func (f SinkFunc) Emit(ctx context.Context, rec Record) { f(ctx, rec) }

// Tee fans records out to every non-nil sink in order.
func Tee(sinks ...Sink) Sink {
	var live []Sink
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	return SinkFunc(func(ctx context.Context, rec Record) {
		for _, s := range live {
			s.Emit(ctx, rec)
		}
	})
}

// StackTracer is implemented by errors that carry their own stack.
type StackTracer interface {
	StackTrace() string
}

// PanicError wraps a value recovered from a panic.
type PanicError struct {
	Value any
	Stack []byte
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", p.Value)
}

// StackTrace returns the goroutine stack captured at recovery.
func (p *PanicError) StackTrace() string {
	return string(p.Stack)
}

// Unwrap exposes a panicked error value.
func (p *PanicError) Unwrap() error {
	err, _ := p.Value.(error)
	return err
}

const (
	statePending int32 = iota
	stateFinished
)

// Logger tracks one request from start to its single outcome.
type Logger struct {
	state  atomic.Int32
	fields Fields
	sink   Sink
	ctx    context.Context
	start  time.Time
	now    func() time.Time
}

// Start begins tracking a request. The start time carries Go's monotonic
// clock reading, so the reported duration ignores wall clock changes.
func Start(ctx context.Context, fields Fields, sink Sink) *Logger {
	return start(ctx, fields, sink, time.Now)
}

func start(ctx context.Context, fields Fields, sink Sink, now func() time.Time) *Logger {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Logger{
		fields: fields,
		sink:   sink,
		ctx:    context.WithoutCancel(ctx),
		start:  now(),
		now:    now,
	}
}

// Finished reports whether an outcome has been recorded.
func (l *Logger) Finished() bool {
	return l.state.Load() == stateFinished
}

// Success finalizes the request as served. A zero status means 200.
func (l *Logger) Success(extra Extra) bool {
	if !l.finish() {
		return false
	}
	status := extra.Status
	if status == 0 {
		status = 200
	}
	rec := l.record(KindSuccess, LevelInfo, status)
	rec.Source = extra.Source
	rec.ETag = extra.ETag
	rec.Blocks = extra.Blocks
	rec.Fallbacks = extra.Fallbacks
	l.emit(rec)
	return true
}

// Miss finalizes the request as not found. The status is always 404.
func (l *Logger) Miss() bool {
	if !l.finish() {
		return false
	}
	l.emit(l.record(KindMiss, LevelInfo, 404))
	return true
}

// Error finalizes the request as failed. v may be an error or any value
// recovered from a panic; a stack is attached when one is available.
func (l *Logger) Error(v any) bool {
	if !l.finish() {
		return false
	}
	rec := l.record(KindError, LevelError, 500)
	rec.Message, rec.ErrorStack = describe(v)
	l.emit(rec)
	return true
}

func (l *Logger) finish() bool {
	return l.state.CompareAndSwap(statePending, stateFinished)
}

func (l *Logger) record(kind Kind, level Level, status int) Record {
	end := l.now()
	return Record{
		Route:      l.fields.Route,
		Slug:       l.fields.Slug,
		Locale:     l.fields.Locale,
		RequestID:  l.fields.RequestID,
		Kind:       kind,
		Level:      level,
		Status:     status,
		DurationMs: durationMs(end.Sub(l.start)),
		Timestamp:  end.UTC(),
	}
}

func (l *Logger) emit(rec Record) {
	if l.sink != nil {
		l.sink.Emit(l.ctx, rec)
	}
}

// durationMs converts d to milliseconds rounded to the microsecond.
func durationMs(d time.Duration) float64 {
	if d < 0 {
		return 0
	}
	return math.Round(float64(d.Round(time.Microsecond))/float64(time.Microsecond)) / 1000
}

func describe(v any) (message, stack string) {
	switch x := v.(type) {
	case nil:
		return "unknown error", ""
	case error:
		var st StackTracer
		if errors.As(x, &st) {
			stack = st.StackTrace()
		}
		return x.Error(), stack
	case string:
		return x, ""
	case fmt.Stringer:
		return x.String(), ""
	default:
		return fmt.Sprintf("%v", x), ""
	}
}
