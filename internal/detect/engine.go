package detect

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/veil-sh/veil/internal/pii"
	"github.com/veil-sh/veil/internal/providers"
	"github.com/veil-sh/veil/internal/semantic"
)

// defaultMaxTextBytes bounds the input document size.
const defaultMaxTextBytes = 1 << 20

// Config assembles an Engine. Completer nil disables the generative passes;
// Index nil disables the semantic pass. Pattern detection always runs.
type Config struct {
	Completer    providers.Completer
	Index        semantic.Searcher
	CustomRules  []Rule
	MaxTextBytes int
	Logger       *slog.Logger
}

// Engine runs the multi-pass detection pipeline over one input text per
// invocation. It holds no mutable state across invocations.
type Engine struct {
	matcher      *PatternMatcher
	contextual   *ContextualDetector
	unstructured *UnstructuredDetector
	expander     *RetrospectiveExpander
	semantic     *SemanticExtractor
	maxTextBytes int
	logger       *slog.Logger
}

// New creates an Engine from the given configuration.
func New(cfg Config) *Engine {
	matcher := NewPatternMatcher(cfg.CustomRules...)

	e := &Engine{
		matcher:      matcher,
		expander:     NewRetrospectiveExpander(cfg.Completer),
		maxTextBytes: cfg.MaxTextBytes,
		logger:       cfg.Logger,
	}
	if e.maxTextBytes <= 0 {
		e.maxTextBytes = defaultMaxTextBytes
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if cfg.Completer != nil {
		e.contextual = NewContextualDetector(cfg.Completer)
		e.unstructured = NewUnstructuredDetector(cfg.Completer)
	}
	if cfg.Index != nil {
		e.semantic = NewSemanticExtractor(cfg.Index, matcher)
	}
	return e
}

// Options scope one DetectAll invocation. A nil or empty Types slice
// requests every type. DocumentID enables the semantic pass when an index
// is configured.
type Options struct {
	Types      []pii.Type
	DocumentID string
	PageNumber int
}

// DetectAll runs the full pipeline and returns a disjoint,
// confidence-resolved entity set. Failure of any enhancement pass degrades
// that pass to an empty result; only invalid input returns an error.
func (e *Engine) DetectAll(ctx context.Context, text string, opts Options) ([]pii.Entity, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &InputError{Reason: "text is empty"}
	}
	if len(text) > e.maxTextBytes {
		return nil, &InputError{Reason: "text exceeds maximum size"}
	}
	for _, t := range opts.Types {
		if !t.Valid() {
			return nil, &InputError{Reason: "unknown PII type: " + string(t)}
		}
	}

	// Pass 1: deterministic patterns. Infallible.
	accepted := Merge(e.matcher.Detect(text, opts.Types))

	// Pass 2: the two generative detectors run concurrently, both complete
	// before downstream stages.
	if e.contextual != nil {
		var wg sync.WaitGroup
		var ctxEntities, unstEntities []pii.Entity

		wg.Add(2)
		go func() {
			defer wg.Done()
			ctxEntities = e.runPass("contextual", func() ([]pii.Entity, error) {
				return e.contextual.Detect(ctx, text, accepted, opts.Types)
			})
		}()
		go func() {
			defer wg.Done()
			unstEntities = e.runPass("unstructured", func() ([]pii.Entity, error) {
				return e.unstructured.Detect(ctx, text, accepted, opts.Types)
			})
		}()
		wg.Wait()

		accepted = Merge(append(accepted, append(ctxEntities, unstEntities...)...))
	}

	// Pass 3: retrospective expansion over the accepted set.
	occurrences := e.expander.ExpandOccurrences(text, accepted)
	accepted = Merge(append(accepted, occurrences...))

	if e.contextual != nil {
		variations := e.runPass("variation", func() ([]pii.Entity, error) {
			return e.expander.DiscoverVariations(ctx, text, accepted)
		})
		accepted = Merge(append(accepted, variations...))
	}

	// Pass 4: optional semantic index extraction.
	if e.semantic != nil && opts.DocumentID != "" {
		extracted := e.runPass("semantic", func() ([]pii.Entity, error) {
			return e.semantic.Extract(ctx, text, opts.DocumentID, accepted, opts.Types)
		})
		accepted = Merge(append(accepted, extracted...))
	}

	final := Merge(accepted)
	if opts.PageNumber > 0 {
		for i := range final {
			final[i].PageNumber = opts.PageNumber
		}
	}
	return final, nil
}

// runPass applies the degrade-to-empty policy: an enhancement pass failure
// is logged and never aborts the pipeline.
func (e *Engine) runPass(name string, fn func() ([]pii.Entity, error)) []pii.Entity {
	entities, err := fn()
	if err != nil {
		e.logger.Warn("detection pass degraded to empty result",
			"pass", name, "error", err)
		return nil
	}
	return entities
}

// ApplyPlan renders the masked text produced by applying every entity with
// ShouldRedact set. Entities must be disjoint; overlaps should be resolved
// by Merge first.
func ApplyPlan(text string, entities []pii.Entity) string {
	sorted := Merge(entities)

	var b strings.Builder
	last := 0
	for _, ent := range sorted {
		if !ent.ShouldRedact || !ent.Span.ValidFor(len(text)) || ent.Span.Start < last {
			continue
		}
		b.WriteString(text[last:ent.Span.Start])
		b.WriteString(ent.MaskedValue)
		last = ent.Span.End
	}
	b.WriteString(text[last:])
	return b.String()
}
