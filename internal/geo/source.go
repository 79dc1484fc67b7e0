// ABOUTME: Device location source abstraction with manual and replay backends
// ABOUTME: Normalizes watch options and classifies watch errors by code

package geo

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fightbackff-oss/trackmate/internal/models"
)

// Default watch parameters applied when the caller leaves them zero.
const (
	DefaultTimeout      = 20 * time.Second
	DefaultMaxSampleAge = 5 * time.Second
)

// Sample is one position fix from the device.
type Sample struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Accuracy   float64   `json:"accuracy,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}

// Location converts the sample into the model form.
func (s Sample) Location() models.Location {
	return models.Location{
		Lat:       s.Lat,
		Lng:       s.Lng,
		Accuracy:  s.Accuracy,
		Timestamp: s.CapturedAt,
	}
}

// ErrorCode classifies why a watch failed or a sample was unavailable.
type ErrorCode int

const (
	PermissionDenied ErrorCode = iota + 1
	PositionUnavailable
	Timeout
)

// String returns a readable name for the error code.
func (c ErrorCode) String() string {
	switch c {
	case PermissionDenied:
		return "permission denied"
	case PositionUnavailable:
		return "position unavailable"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// WatchError is a classified failure delivered on the error callback.
// The watch keeps running after recoverable errors; the caller decides
// whether to cancel.
type WatchError struct {
	Code    ErrorCode
	Message string
}

func (e WatchError) Error() string {
	if e.Message == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WatchOptions tunes a position watch.
type WatchOptions struct {
	// Timeout bounds the silence between fixes before a Timeout error fires.
	Timeout time.Duration
	// MaxSampleAge drops cached fixes older than this at delivery time.
	MaxSampleAge time.Duration
}

func (o WatchOptions) withDefaults() WatchOptions {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxSampleAge <= 0 {
		o.MaxSampleAge = DefaultMaxSampleAge
	}
	return o
}

// SampleFunc receives position fixes.
type SampleFunc func(Sample)

// ErrorFunc receives classified watch errors.
type ErrorFunc func(WatchError)

// CancelFunc stops a watch. Safe to call more than once.
type CancelFunc func()

// Source produces a stream of position fixes. Start is idempotent in effect:
// a second Start on an already-watching source returns an error rather than
// opening a second stream.
type Source interface {
	Start(ctx context.Context, onSample SampleFunc, onError ErrorFunc, opts WatchOptions) (CancelFunc, error)
}

// ManualSource delivers samples pushed by the caller, used by tests and the
// interactive prompt where the operator types coordinates.
type ManualSource struct {
	mu       sync.Mutex
	onSample SampleFunc
	onError  ErrorFunc
	opts     WatchOptions
	timer    *time.Timer
	active   bool
}

// NewManualSource creates an idle manual source.
func NewManualSource() *ManualSource {
	return &ManualSource{}
}

// Start registers the callbacks. The returned cancel detaches them.
func (m *ManualSource) Start(ctx context.Context, onSample SampleFunc, onError ErrorFunc, opts WatchOptions) (CancelFunc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return nil, fmt.Errorf("source already watching")
	}
	m.active = true
	m.onSample = onSample
	m.onError = onError
	m.opts = opts.withDefaults()
	m.timer = time.AfterFunc(m.opts.Timeout, m.timedOut)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			if m.timer != nil {
				m.timer.Stop()
				m.timer = nil
			}
			m.active = false
			m.onSample = nil
			m.onError = nil
			m.mu.Unlock()
		})
	}
	context.AfterFunc(ctx, cancel)
	return cancel, nil
}

// timedOut reports a silent watch and re-arms so prolonged silence keeps
// signaling once per timeout window.
func (m *ManualSource) timedOut() {
	m.mu.Lock()
	fn := m.onError
	timeout := m.opts.Timeout
	if m.timer != nil {
		m.timer.Reset(timeout)
	}
	m.mu.Unlock()
	if fn != nil {
		fn(WatchError{Code: Timeout, Message: "no fix within " + timeout.String()})
	}
}

// Push delivers a sample to the active watch. Stale samples are dropped and
// do not defer the timeout watchdog.
func (m *ManualSource) Push(s Sample) {
	m.mu.Lock()
	fn := m.onSample
	opts := m.opts
	timer := m.timer
	m.mu.Unlock()
	if fn == nil {
		return
	}
	if opts.MaxSampleAge > 0 && !s.CapturedAt.IsZero() && time.Since(s.CapturedAt) > opts.MaxSampleAge {
		return
	}
	if timer != nil {
		timer.Reset(opts.Timeout)
	}
	fn(s)
}

// Fail delivers a classified error to the active watch.
func (m *ManualSource) Fail(code ErrorCode, message string) {
	m.mu.Lock()
	fn := m.onError
	m.mu.Unlock()
	if fn != nil {
		fn(WatchError{Code: code, Message: message})
	}
}

// ReplaySource plays back JSON-lines samples from a reader, one line per
// fix, waiting Interval between lines. Useful for demos and soak tests.
type ReplaySource struct {
	r        io.Reader
	interval time.Duration

	mu     sync.Mutex
	active bool
}

// NewReplaySource creates a replay source over r.
func NewReplaySource(r io.Reader, interval time.Duration) *ReplaySource {
	return &ReplaySource{r: r, interval: interval}
}

// Start streams the recorded samples until the reader drains or ctx ends.
// Lines that fail to decode surface as PositionUnavailable and playback
// continues.
func (rs *ReplaySource) Start(ctx context.Context, onSample SampleFunc, onError ErrorFunc, opts WatchOptions) (CancelFunc, error) {
	rs.mu.Lock()
	if rs.active {
		rs.mu.Unlock()
		return nil, fmt.Errorf("source already watching")
	}
	rs.active = true
	rs.mu.Unlock()
	opts = opts.withDefaults()

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer func() {
			rs.mu.Lock()
			rs.active = false
			rs.mu.Unlock()
		}()
		// Fires when the reader stays silent past the timeout, e.g. a
		// stalled pipe feeding the replay.
		watchdog := time.AfterFunc(opts.Timeout, func() {
			if onError != nil {
				onError(WatchError{Code: Timeout, Message: "no fix within " + opts.Timeout.String()})
			}
		})
		defer watchdog.Stop()
		scanner := bufio.NewScanner(rs.r)
		for scanner.Scan() {
			if ctx.Err() != nil {
				return
			}
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var s Sample
			if err := json.Unmarshal(line, &s); err != nil {
				if onError != nil {
					onError(WatchError{Code: PositionUnavailable, Message: err.Error()})
				}
				continue
			}
			if s.CapturedAt.IsZero() {
				s.CapturedAt = time.Now()
			}
			watchdog.Reset(opts.Timeout)
			onSample(s)
			if rs.interval > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(rs.interval):
				}
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(cancel) }, nil
}
