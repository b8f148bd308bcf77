// Package watchdog kills child processes that stay above a CPU usage
// limit for too long, such as a console program stuck in a busy loop.
package watchdog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/deixis/codecheck/internal/metrics"
	"github.com/prometheus/procfs"
)

const (
	DefaultLimit     = 95.0
	DefaultFrequency = 5
	DefaultInterval  = time.Second
)

// ErrKilled is returned by Watch when the target was killed for
// exceeding the limit.
var ErrKilled = errors.New("watchdog: cpu limit exceeded")

// Target is a running process the watchdog can observe and signal.
// *runner.Process satisfies it.
type Target interface {
	Pid() int
	Kill(sig os.Signal) error
	Done() <-chan struct{}
}

// Sampler reports the cumulative CPU time consumed by a process.
type Sampler interface {
	CPUTime(pid int) (time.Duration, error)
}

// ProcSampler reads CPU time from the proc filesystem.
type ProcSampler struct {
	fs procfs.FS
}

// NewProcSampler mounts the default proc filesystem.
func NewProcSampler() (*ProcSampler, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, fmt.Errorf("opening procfs: %w", err)
	}
	return &ProcSampler{fs: fs}, nil
}

func (s *ProcSampler) CPUTime(pid int) (time.Duration, error) {
	p, err := s.fs.Proc(pid)
	if err != nil {
		return 0, err
	}
	st, err := p.Stat()
	if err != nil {
		return 0, err
	}
	return time.Duration(st.CPUTime() * float64(time.Second)), nil
}

// Watchdog samples a process every Interval and kills it with Signal once
// usage has been at or above Limit percent for Frequency consecutive
// samples. Zero fields take the package defaults.
type Watchdog struct {
	Limit     float64
	Frequency int
	Interval  time.Duration
	Sampler   Sampler
	Signal    os.Signal
	Logger    *log.Logger
}

func (w *Watchdog) defaults() (Watchdog, error) {
	c := *w
	if c.Limit <= 0 {
		c.Limit = DefaultLimit
	}
	if c.Frequency <= 0 {
		c.Frequency = DefaultFrequency
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Signal == nil {
		c.Signal = os.Kill
	}
	if c.Logger == nil {
		c.Logger = log.New(io.Discard)
	}
	if c.Sampler == nil {
		s, err := NewProcSampler()
		if err != nil {
			return c, err
		}
		c.Sampler = s
	}
	return c, nil
}

// Watch blocks until target ends, ctx is done or the limit trips. It
// returns nil when the target ends on its own and ErrKilled after
// signalling it. Sampling errors reset the streak; a process that has
// already gone is not an error.
func (w *Watchdog) Watch(ctx context.Context, target Target) error {
	c, err := w.defaults()
	if err != nil {
		return err
	}
	pid := target.Pid()
	if pid <= 0 {
		return errors.New("watchdog: target is not running")
	}

	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()

	lastAt := time.Now()
	last, err := c.Sampler.CPUTime(pid)
	baseline := err == nil
	if err != nil {
		c.Logger.Debug("initial cpu sample failed", "pid", pid, "err", err)
	}
	streak := 0

	for {
		select {
		case <-target.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		now := time.Now()
		cpu, err := c.Sampler.CPUTime(pid)
		if err != nil {
			select {
			case <-target.Done():
				return nil
			default:
			}
			c.Logger.Debug("cpu sample failed", "pid", pid, "err", err)
			streak, baseline = 0, false
			continue
		}
		if !baseline {
			last, lastAt, baseline = cpu, now, true
			continue
		}

		usage := Usage(cpu-last, now.Sub(lastAt))
		last, lastAt = cpu, now
		if usage < c.Limit {
			streak = 0
			continue
		}
		streak++
		c.Logger.Debug("cpu over limit", "pid", pid, "usage", usage, "streak", streak)
		if streak < c.Frequency {
			continue
		}

		c.Logger.Warn("killing runaway process", "pid", pid, "usage", usage, "limit", c.Limit)
		if err := target.Kill(c.Signal); err != nil {
			return fmt.Errorf("watchdog: killing %d: %w", pid, err)
		}
		metrics.RecordWatchdogTrip()
		return ErrKilled
	}
}

// Usage converts CPU time consumed over a wall-clock span to a
// percentage of one core.
func Usage(cpu, wall time.Duration) float64 {
	if wall <= 0 {
		return 0
	}
	return float64(cpu) / float64(wall) * 100
}
