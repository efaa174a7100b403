// Package pipeline turns two encoded face photos into a validated, cached
// compatibility analysis.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"face-match/api/internal/analysis"
	"face-match/api/internal/credential"
	"face-match/api/internal/logger"
	"face-match/api/internal/metrics"
	"face-match/api/internal/prompt"
)

// Invoker performs the remote generate call and returns raw text.
type Invoker interface {
	Invoke(ctx context.Context, req *prompt.Request, apiKey string) (string, error)
}

// CredentialResolver finds the API key; see credential.Resolver.
type CredentialResolver interface {
	Resolve() (credential.Found, bool)
}

// Journal receives one Attempt per Analyze call. Write failures are logged, never returned.
type Journal interface {
	Record(ctx context.Context, a Attempt) error
}

const (
	OutcomeOK       = "ok"
	OutcomeCacheHit = "cache_hit"
)

// Attempt is the audit view of one Analyze call. It never carries images or results.
type Attempt struct {
	ID          uuid.UUID
	Fingerprint string
	Outcome     string // OutcomeOK, OutcomeCacheHit or a failure kind
	MatchScore  int    // 0 unless the attempt produced an analysis
	Model       string
	Duration    time.Duration
	CreatedAt   time.Time
}

type Analyzer struct {
	invoker  Invoker
	resolver CredentialResolver
	cache    analysis.Cache
	journal  Journal
	log      logger.Logger
	model    string
	build    func(male, female string) (*prompt.Request, error)
	now      func() time.Time
}

type Option func(*Analyzer)

func WithCache(c analysis.Cache) Option {
	return func(a *Analyzer) {
		if c != nil {
			a.cache = c
		}
	}
}

func WithResolver(r CredentialResolver) Option {
	return func(a *Analyzer) {
		if r != nil {
			a.resolver = r
		}
	}
}

func WithJournal(j Journal) Option {
	return func(a *Analyzer) { a.journal = j }
}

func WithLogger(l logger.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.log = l
		}
	}
}

// WithModelName is recorded in the journal only; the invoker owns the real model.
func WithModelName(name string) Option {
	return func(a *Analyzer) { a.model = name }
}

func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) {
		if now != nil {
			a.now = now
		}
	}
}

// New wires an analyzer around invoker. By default it gets a fresh MemoryCache,
// the production credential chain and a no-op logger.
func New(invoker Invoker, opts ...Option) *Analyzer {
	a := &Analyzer{
		invoker:  invoker,
		resolver: credential.Default(),
		cache:    analysis.NewMemoryCache(),
		log:      logger.NewNop(),
		build:    prompt.Build,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze runs one attempt for the pair. A cached result is returned without a
// remote call. Failures are *analysis.Error values; nothing is retried.
func (a *Analyzer) Analyze(ctx context.Context, male, female string) (*analysis.RelationshipAnalysis, error) {
	start := a.now()
	att := Attempt{
		ID:          uuid.New(),
		Fingerprint: analysis.Fingerprint(male, female),
		Model:       a.model,
		CreatedAt:   start,
	}
	log := a.log.With(logger.String("attempt", att.ID.String()), logger.String("fingerprint", att.Fingerprint))

	if cached, ok := a.cache.Lookup(att.Fingerprint); ok {
		metrics.RecordCacheHit()
		log.Debug(ctx, "analysis served from cache", logger.Int("match_score", cached.MatchScore))
		att.Outcome = OutcomeCacheHit
		att.MatchScore = cached.MatchScore
		a.finish(ctx, log, &att, start)
		return &cached, nil
	}
	metrics.RecordCacheMiss()

	res, err := a.run(ctx, log, male, female)
	if err != nil {
		att.Outcome = analysis.KindOf(err).String()
		log.Warn(ctx, "analysis failed", logger.String("kind", att.Outcome), logger.Error(err))
		a.finish(ctx, log, &att, start)
		return nil, err
	}

	a.cache.Store(att.Fingerprint, *res)
	metrics.UpdateCacheEntries(a.cache.Len())
	att.Outcome = OutcomeOK
	att.MatchScore = res.MatchScore
	a.finish(ctx, log, &att, start)
	log.Info(ctx, "analysis completed", logger.Int("match_score", res.MatchScore), logger.Duration("took", att.Duration))

	out := res.Clone()
	return &out, nil
}

func (a *Analyzer) run(ctx context.Context, log logger.Logger, male, female string) (*analysis.RelationshipAnalysis, error) {
	found, ok := a.resolver.Resolve()
	if !ok {
		log.Warn(ctx, "api key status: not found")
		return nil, analysis.NewError(analysis.KindConfigurationMissing, "credential",
			"API key missing: set VITE_GEMINI_API_KEY or GEMINI_API_KEY and redeploy")
	}
	log.Debug(ctx, "api key status: loaded",
		logger.String("source", found.Source), logger.String("prefix", credential.Prefix(found.Value)))

	req, err := a.build(male, female)
	if err != nil {
		return nil, err
	}

	callStart := a.now()
	raw, err := a.invoker.Invoke(ctx, req, found.Value)
	metrics.RecordModelLatency(a.now().Sub(callStart).Seconds())
	if err != nil {
		if analysis.KindOf(err) == analysis.KindUnknown {
			err = analysis.Wrap(analysis.KindTransportFailure, "invoke", err)
		}
		return nil, err
	}
	if raw == "" {
		return nil, analysis.NewError(analysis.KindEmptyResponse, "invoke", "model returned empty response")
	}

	return analysis.Parse(raw)
}

func (a *Analyzer) finish(ctx context.Context, log logger.Logger, att *Attempt, start time.Time) {
	att.Duration = a.now().Sub(start)
	metrics.RecordAttempt(att.Outcome)
	if a.journal == nil {
		return
	}
	if err := a.journal.Record(ctx, *att); err != nil {
		metrics.RecordJournalError()
		log.Error(ctx, "journal write failed", logger.Error(err))
	}
}

// CacheLen reports how many analyses are cached.
func (a *Analyzer) CacheLen() int { return a.cache.Len() }
