package usecase

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/coaching-kb/internal/core/domain"
	"github.com/kirillkom/coaching-kb/internal/core/ports"
)

const (
	DefaultDedupRecentWindow   = 4
	DefaultDedupActiveWindow   = 2 * time.Minute
	DefaultDedupSubstringChars = 50
	DefaultDedupSharedPhrases  = 2
	DefaultDedupStreamIdle     = 10 * time.Minute

	ReasonExactMatch    = "exact_match"
	ReasonPrefixOverlap = "prefix_overlap"
	ReasonSharedPhrases = "shared_key_phrases"
)

// DefaultKeyPhrases are the coaching terms compared between suggestions.
var DefaultKeyPhrases = []string{
	"budget", "timeline", "decision maker", "pain point", "objection",
	"price", "value", "roi", "next step", "competitor",
	"calibrated question", "mirror", "label", "empathy", "close",
}

type DedupConfig struct {
	RecentWindow   int
	ActiveWindow   time.Duration
	SubstringChars int
	SharedPhrases  int
	KeyPhrases     []string
}

func (c DedupConfig) withDefaults() DedupConfig {
	if c.RecentWindow <= 0 {
		c.RecentWindow = DefaultDedupRecentWindow
	}
	if c.ActiveWindow <= 0 {
		c.ActiveWindow = DefaultDedupActiveWindow
	}
	if c.SubstringChars <= 0 {
		c.SubstringChars = DefaultDedupSubstringChars
	}
	if c.SharedPhrases <= 0 {
		c.SharedPhrases = DefaultDedupSharedPhrases
	}
	if len(c.KeyPhrases) == 0 {
		c.KeyPhrases = DefaultKeyPhrases
	}
	c.KeyPhrases = normalizeTerms(c.KeyPhrases)
	return c
}

type acceptedSuggestion struct {
	suggestion domain.Suggestion
	normalized string
	at         time.Time
}

// DedupEngine filters one ordered suggestion stream. Submissions are serialized.
type DedupEngine struct {
	mu     sync.Mutex
	cfg    DedupConfig
	now    func() time.Time
	state  domain.DedupState
	last   domain.DedupState
	recent []acceptedSuggestion
}

func NewDedupEngine(cfg DedupConfig, now func() time.Time) *DedupEngine {
	if now == nil {
		now = time.Now
	}
	return &DedupEngine{
		cfg:   cfg.withDefaults(),
		now:   now,
		state: domain.DedupWaiting,
	}
}

func (e *DedupEngine) State() domain.DedupState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// LastVerdict is ACCEPTED or SUPPRESSED for the latest submission, empty before the first.
func (e *DedupEngine) LastVerdict() domain.DedupState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// Submit evaluates a candidate against the active part of the recent window.
func (e *DedupEngine) Submit(candidate domain.Suggestion) domain.Verdict {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state = domain.DedupEvaluating
	at := candidate.Timestamp
	if at.IsZero() {
		at = e.now()
	}
	normalized := normalizeSuggestion(candidate.Text)

	verdict := e.evaluate(normalized, at)
	if verdict.Accepted {
		e.accept(acceptedSuggestion{suggestion: candidate, normalized: normalized, at: at})
	} else {
		slog.Debug("suggestion_suppressed",
			"suggestion_id", candidate.ID,
			"stream_id", candidate.StreamID,
			"reason", verdict.Reason,
			"matched_id", verdict.MatchedID,
		)
	}
	e.last = verdict.State
	e.state = domain.DedupWaiting
	return verdict
}

func (e *DedupEngine) evaluate(candidate string, at time.Time) domain.Verdict {
	for _, prior := range e.recent {
		// The active window is half-open: a repeat exactly ActiveWindow later is fresh.
		if at.Sub(prior.at) >= e.cfg.ActiveWindow {
			continue
		}
		if reason, dup := e.duplicate(candidate, prior.normalized); dup {
			return domain.Verdict{State: domain.DedupSuppressed, Reason: reason, MatchedID: prior.suggestion.ID}
		}
	}
	return domain.Verdict{Accepted: true, State: domain.DedupAccepted}
}

func (e *DedupEngine) duplicate(a, b string) (string, bool) {
	if a == b {
		return ReasonExactMatch, true
	}
	n := e.cfg.SubstringChars
	if len([]rune(a)) > n && len([]rune(b)) > n {
		if strings.Contains(b, firstRunes(a, n)) || strings.Contains(a, firstRunes(b, n)) {
			return ReasonPrefixOverlap, true
		}
	}
	shared := 0
	for _, phrase := range e.cfg.KeyPhrases {
		if strings.Contains(a, phrase) && strings.Contains(b, phrase) {
			shared++
			if shared >= e.cfg.SharedPhrases {
				return ReasonSharedPhrases, true
			}
		}
	}
	return "", false
}

// accept pushes to the front and keeps the most recent RecentWindow entries.
func (e *DedupEngine) accept(entry acceptedSuggestion) {
	e.recent = append([]acceptedSuggestion{entry}, e.recent...)
	if len(e.recent) > e.cfg.RecentWindow {
		e.recent = e.recent[:e.cfg.RecentWindow]
	}
}

// Run consumes in until it closes or ctx ends, forwarding accepted suggestions
// to out in arrival order.
func (e *DedupEngine) Run(ctx context.Context, in <-chan domain.Suggestion, out chan<- domain.Suggestion) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-in:
			if !ok {
				return nil
			}
			if !e.Submit(s).Accepted {
				continue
			}
			select {
			case out <- s:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func normalizeSuggestion(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

func firstRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

type streamEngine struct {
	engine   *DedupEngine
	lastSeen time.Time
}

// SuggestionRouter keeps one DedupEngine per live stream and evicts idle ones.
type SuggestionRouter struct {
	mu       sync.Mutex
	cfg      DedupConfig
	idle     time.Duration
	now      func() time.Time
	streams  map[string]*streamEngine
	observer ports.SuggestionObserver
}

func NewSuggestionRouter(cfg DedupConfig, idle time.Duration, now func() time.Time) *SuggestionRouter {
	if idle <= 0 {
		idle = DefaultDedupStreamIdle
	}
	if now == nil {
		now = time.Now
	}
	return &SuggestionRouter{
		cfg:     cfg,
		idle:    idle,
		now:     now,
		streams: make(map[string]*streamEngine),
	}
}

func (r *SuggestionRouter) WithObserver(o ports.SuggestionObserver) *SuggestionRouter {
	r.observer = o
	return r
}

func (r *SuggestionRouter) engine(streamID string) *DedupEngine {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.streams[streamID]
	if !ok {
		entry = &streamEngine{engine: NewDedupEngine(r.cfg, r.now)}
		r.streams[streamID] = entry
	}
	entry.lastSeen = r.now()
	return entry.engine
}

func (r *SuggestionRouter) Submit(streamID string, suggestion domain.Suggestion) domain.Verdict {
	if streamID == "" {
		streamID = suggestion.StreamID
	}
	suggestion.StreamID = streamID
	verdict := r.engine(streamID).Submit(suggestion)
	if r.observer != nil {
		r.observer.ObserveVerdict(verdict)
	}
	return verdict
}

// Evict drops streams idle longer than the configured idle period and returns how many were dropped.
func (r *SuggestionRouter) Evict() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-r.idle)
	dropped := 0
	for id, entry := range r.streams {
		if entry.lastSeen.Before(cutoff) {
			delete(r.streams, id)
			dropped++
		}
	}
	return dropped
}

func (r *SuggestionRouter) Streams() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.streams)
}

// RunEviction calls Evict every interval until ctx ends.
func (r *SuggestionRouter) RunEviction(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = r.idle / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Evict(); n > 0 {
				slog.Info("suggestion_streams_evicted", "count", n)
			}
		}
	}
}

// Forward returns a bus handler that publishes accepted suggestions back to the bus.
func (r *SuggestionRouter) Forward(bus ports.SuggestionBus) func(context.Context, domain.Suggestion) error {
	return func(ctx context.Context, s domain.Suggestion) error {
		if !r.Submit(s.StreamID, s).Accepted {
			return nil
		}
		return bus.PublishAcceptedSuggestion(ctx, s)
	}
}
