package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/swooby/alfredd/internal/core/storage"
	"github.com/swooby/alfredd/internal/core/summary"
	"github.com/swooby/alfredd/internal/speech"
)

const digestQueryLimit = 5000

// DigestScheduler speaks a periodic rollup of the trailing window.
// Each tick independently queries the event store; there is no
// checkpoint state to recover.
type DigestScheduler struct {
	interval   time.Duration
	title      string
	userID     string
	store      storage.EventStore
	summarizer summary.Generator
	speaker    speech.Speaker

	// now is injectable for tests.
	now func() time.Time
}

func NewDigestScheduler(
	interval time.Duration,
	title string,
	userID string,
	store storage.EventStore,
	summarizer summary.Generator,
	speaker speech.Speaker,
) *DigestScheduler {
	if title == "" {
		title = "Last hour"
	}
	return &DigestScheduler{
		interval:   interval,
		title:      title,
		userID:     userID,
		store:      store,
		summarizer: summarizer,
		speaker:    speaker,
		now:        time.Now,
	}
}

// Start begins periodic digests. Runs until context is cancelled, then
// speaks one final digest so a shutdown never swallows the last window.
func (s *DigestScheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("[Digest] Scheduler started",
		"interval", s.interval,
		"user_id", s.userID)

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-ctx.Done():
			slog.Info("[Digest] Scheduler stopping (context cancelled)")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			s.runOnce(shutdownCtx)

			return nil
		}
	}
}

// runOnce queries the trailing window and speaks the rendered digest.
func (s *DigestScheduler) runOnce(ctx context.Context) {
	now := s.now()
	from := now.Add(-s.interval)

	events, err := s.store.ListByTime(ctx, s.userID, from, now, digestQueryLimit)
	if err != nil {
		slog.Error("[Digest] Failed to load events", "error", err, "user_id", s.userID)
		return
	}

	digest := s.summarizer.Digest(s.title, events)
	text := digest.Title + " " + strings.Join(digest.Lines, " ")

	slog.Info("[Digest] Rendered digest",
		"user_id", s.userID,
		"events", len(events),
		"lines", len(digest.Lines))

	if err := s.speaker.Speak(ctx, text); err != nil {
		slog.Warn("[Digest] Speech failed", "error", err)
	}
}
