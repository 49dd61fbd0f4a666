// Package pipeline wires the streaming core together:
// ingest -> storage -> rules -> summary -> speech.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/swooby/alfredd/internal/core/event"
	"github.com/swooby/alfredd/internal/core/ingest"
	"github.com/swooby/alfredd/internal/core/rules"
	"github.com/swooby/alfredd/internal/core/storage"
	"github.com/swooby/alfredd/internal/core/summary"
	"github.com/swooby/alfredd/internal/speech"
)

// ConfigSource supplies the latest rules policy snapshot.
type ConfigSource interface {
	Current() rules.Config
}

// DeviceStateFunc reports the device snapshot at decision time.
type DeviceStateFunc func() rules.DeviceState

// Orchestrator consumes the ingest engine's output: every emitted event
// is persisted, run through the decision policy, and — when worth
// surfacing — rendered and spoken.
type Orchestrator struct {
	ingest      *ingest.Engine
	engine      *rules.Engine
	summarizer  summary.Generator
	store       storage.EventStore
	speaker     speech.Speaker
	settings    ConfigSource
	deviceState DeviceStateFunc
}

func NewOrchestrator(
	ing *ingest.Engine,
	engine *rules.Engine,
	summarizer summary.Generator,
	store storage.EventStore,
	speaker speech.Speaker,
	settings ConfigSource,
	deviceState DeviceStateFunc,
) *Orchestrator {
	if deviceState == nil {
		deviceState = func() rules.DeviceState {
			return rules.DeviceState{TZ: time.Local}
		}
	}
	return &Orchestrator{
		ingest:      ing,
		engine:      engine,
		summarizer:  summarizer,
		store:       store,
		speaker:     speaker,
		settings:    settings,
		deviceState: deviceState,
	}
}

// Run subscribes to the ingest output and processes events until ctx is
// cancelled. Blocks; run it on its own goroutine.
func (o *Orchestrator) Run(ctx context.Context) error {
	out, cancel := o.ingest.Subscribe()
	defer cancel()

	slog.Info("[Pipeline] Orchestrator started")

	for {
		select {
		case <-ctx.Done():
			slog.Info("[Pipeline] Orchestrator stopping (context cancelled)")
			return nil
		case ev, ok := <-out:
			if !ok {
				slog.Info("[Pipeline] Ingest output closed")
				return nil
			}
			o.process(ctx, &ev)
		}
	}
}

func (o *Orchestrator) process(ctx context.Context, ev *event.Event) {
	if o.store != nil {
		if err := o.store.Insert(ctx, ev); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				// Duplicate ids are a logic error upstream; drop the event.
				slog.Error("[Pipeline] Duplicate event id, dropping",
					"event_id", ev.EventID,
					"event_type", ev.EventType)
				return
			}
			// Persistence failed but the event was already emitted;
			// still decide and speak.
			slog.Error("[Pipeline] Failed to persist event",
				"event_id", ev.EventID,
				"error", err)
		}
	}

	decision := o.engine.Decide(ev, o.deviceState(), o.settings.Current())
	switch decision.Kind {
	case rules.DecisionSpeak:
		o.speak(ctx, ev)
	case rules.DecisionDefer:
		slog.Debug("[Pipeline] Decision deferred",
			"event_id", ev.EventID,
			"reason", decision.Reason)
	default:
		slog.Debug("[Pipeline] Event suppressed",
			"event_id", ev.EventID,
			"event_type", ev.EventType,
			"reason", decision.Reason)
	}
}

func (o *Orchestrator) speak(ctx context.Context, ev *event.Event) {
	utterance := o.summarizer.LivePhrase(ev)
	if utterance == nil {
		// No template matched; silence is a legitimate outcome.
		slog.Debug("[Pipeline] No phrase for event",
			"event_id", ev.EventID,
			"event_type", ev.EventType)
		return
	}
	if err := o.speaker.Speak(ctx, utterance.Text); err != nil {
		slog.Warn("[Pipeline] Speech failed",
			"event_id", ev.EventID,
			"error", err)
	}
}
