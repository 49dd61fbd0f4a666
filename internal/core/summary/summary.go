package summary

import (
	"sort"

	"github.com/swooby/alfredd/internal/core/event"
)

// Live is an utterance to speak immediately.
type Live struct {
	Priority int    `json:"priority"`
	Text     string `json:"text"`
}

// Digest is a periodic rollup: a title plus one rendered line per
// non-zero aggregate.
type Digest struct {
	Priority int      `json:"priority"`
	Title    string   `json:"title"`
	Lines    []string `json:"lines"`
}

// PhraseTemplate turns events it recognizes into spoken phrases.
// Templates are independent and may overlap; the resolver picks the
// highest-priority match.
type PhraseTemplate interface {
	Priority() int

	// LivePhrase returns nil when the template does not recognize the
	// event. Silence is a legitimate outcome, not an error.
	LivePhrase(e *event.Event) *Live
}

// Generator renders surfaced events into speech.
type Generator interface {
	// LivePhrase resolves a short phrase for one event; nil when no
	// template matches.
	LivePhrase(e *event.Event) *Live

	// Digest aggregates a collection of historical events. Always
	// produces a result, falling back to a placeholder line.
	Digest(title string, events []*event.Event) Digest
}

// TemplatedGenerator resolves live phrases against a fixed,
// priority-sorted template list. Higher priority wins; equal priority
// keeps registration order.
type TemplatedGenerator struct {
	ordered []PhraseTemplate
}

// NewTemplatedGenerator builds a generator over the given templates.
// With no arguments the default template set is used.
func NewTemplatedGenerator(templates ...PhraseTemplate) *TemplatedGenerator {
	if len(templates) == 0 {
		templates = DefaultTemplates()
	}
	ordered := make([]PhraseTemplate, len(templates))
	copy(ordered, templates)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority() > ordered[j].Priority()
	})
	return &TemplatedGenerator{ordered: ordered}
}

// DefaultTemplates is the built-in matcher set: the app-specific
// Spotify template outranks the generic media one; notifications and
// device-state phrases sit at the bottom.
func DefaultTemplates() []PhraseTemplate {
	return []PhraseTemplate{
		SpotifyTemplate{},
		GenericMediaTemplate{},
		NotificationTemplate{},
		DeviceStateTemplate{},
	}
}

func (g *TemplatedGenerator) LivePhrase(e *event.Event) *Live {
	for _, t := range g.ordered {
		if p := t.LivePhrase(e); p != nil {
			return p
		}
	}
	return nil
}

func (g *TemplatedGenerator) Digest(title string, events []*event.Event) Digest {
	return buildDigest(title, events)
}
