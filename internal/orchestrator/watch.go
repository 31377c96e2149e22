package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
)

// DefaultDebounce is the minimum quiet window after a burst of filesystem
// events before the reactor pumps (spec §6 Environment/config: "watch
// debounce (default 500 ms)").
const DefaultDebounce = 500 * time.Millisecond

// TickInterval is how often the periodic tick fires regardless of file
// activity (spec §4.6 watch mode: "at least once per 5s").
const TickInterval = 5 * time.Second

// WatchDirs are the directories the reactor watches for changes: session
// transcripts, the approval ledger, and the check-in/allowlist singletons.
type WatchDirs struct {
	Sessions string
	Tasks    string
	Storage  string
}

// Watch runs the reactor core until ctx is cancelled (spec §4.6 Watch mode:
// "persistent event loop"). Every filesystem event across dirs is folded
// into a single debounce timer — the pass triggered once the timer fires is
// a full Reconciler.Pump, since a pump pass already performs every reaction
// spec.md names for a session-file change, an approvals-file change, and a
// tick, and doing the extra (idempotent) work on every trigger is cheaper
// than threading event-type distinctions through the debounce core.
// Grounded on the teacher's internal/gateway/debounce.go single-buffer
// debounce-then-flush shape, generalized from per-key message batching to
// a single global "something changed" signal. debounce and tick default to
// DefaultDebounce/TickInterval when zero.
func Watch(ctx context.Context, dirs WatchDirs, r *Reconciler, debounce, tick time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if tick <= 0 {
		tick = TickInterval
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("orchestrator: create watcher: %w", err)
	}
	defer watcher.Close()

	for _, dir := range []string{dirs.Sessions, dirs.Tasks, dirs.Storage} {
		if dir == "" {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("orchestrator: watch %s: %w", dir, err)
		}
	}

	c := cron.New()
	events := make(chan struct{}, 1)
	signal := func() {
		select {
		case events <- struct{}{}:
		default:
		}
	}
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", tick), signal); err != nil {
		return fmt.Errorf("orchestrator: schedule tick: %w", err)
	}
	c.Start()
	defer c.Stop()

	var debounceTimer *time.Timer
	pumpNow := make(chan struct{}, 1)
	resetDebounce := func() {
		if debounceTimer == nil {
			debounceTimer = time.AfterFunc(debounce, func() {
				select {
				case pumpNow <- struct{}{}:
				default:
				}
			})
			return
		}
		debounceTimer.Reset(debounce)
	}

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.Log.Warn().Err(err).Msg("filesystem watcher error")
		case _, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			resetDebounce()
		case <-events:
			if err := r.Pump(ctx); err != nil {
				r.Log.Warn().Err(err).Msg("periodic reconciliation pass failed")
			}
		case <-pumpNow:
			if err := r.Pump(ctx); err != nil {
				r.Log.Warn().Err(err).Msg("debounced reconciliation pass failed")
			}
		}
	}
}
