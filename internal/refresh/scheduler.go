package refresh

import (
	"context"
	"log/slog"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/feeta/feeta/pkg/panicerr"
)

// Func produces a rendered snapshot of the watched view.
type Func func(ctx context.Context) (string, error)

// Tick is the result of one refresh.
type Tick struct {
	At       time.Time
	Snapshot string
	// Diff is a unified diff against the previous successful snapshot. It is
	// empty on the first tick and when nothing changed.
	Diff string
	Err  error
}

type Scheduler struct {
	interval time.Duration
	fn       Func
}

func NewScheduler(interval time.Duration, fn Func) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{interval: interval, fn: fn}
}

// Run refreshes immediately and then on every interval, handing each result
// to onTick. It returns when ctx is done. A failing or panicking refresh is
// reported through Tick.Err and does not stop the schedule.
func (s *Scheduler) Run(ctx context.Context, onTick func(Tick)) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var prev string
	var havePrev bool
	run := func() {
		var snapshot string
		err := panicerr.SafeContext(func(ctx context.Context) error {
			var err error
			snapshot, err = s.fn(ctx)
			return err
		})(ctx)
		if ctx.Err() != nil {
			return
		}
		t := Tick{At: time.Now(), Snapshot: snapshot, Err: err}
		if err != nil {
			slog.WarnContext(ctx, "refresh failed", "error", err)
		} else {
			if havePrev {
				t.Diff = Diff(prev, snapshot)
			}
			prev, havePrev = snapshot, true
		}
		onTick(t)
	}

	run()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}

// Diff returns a unified diff of two snapshots, or "" when they are equal.
func Diff(before, after string) string {
	if before == after {
		return ""
	}
	out, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "previous",
		ToFile:   "current",
		Context:  1,
	})
	if err != nil {
		return ""
	}
	return out
}
