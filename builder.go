package goGuard

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/goGuard/internal/rate"
	"github.com/MrEthical07/goGuard/session"
	"github.com/MrEthical07/goGuard/storage"
	"github.com/MrEthical07/goGuard/storage/boltstore"
	"github.com/MrEthical07/goGuard/storage/redisstore"
	"github.com/MrEthical07/goGuard/ticket"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an [Engine]. A builder can be used for one successful Build.
type Builder struct {
	config Config

	locked      LockedSet
	grants      GrantTable
	redis       redis.UniversalClient
	redisPrefix string
	boltPath    string

	source    EventSource
	presenter Presenter
	suspender Suspender
	resumer   Resumer
	provider  ChallengeProvider

	auditSink AuditSink
	logger    *zap.Logger
	clock     clockwork.Clock

	built bool
}

// New returns a builder holding the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore uses s for both the locked set and the grant table.
func (b *Builder) WithStore(s storage.Store) *Builder {
	b.locked = s
	b.grants = s
	return b
}

func (b *Builder) WithLockedSet(l LockedSet) *Builder {
	b.locked = l
	return b
}

func (b *Builder) WithGrantTable(g GrantTable) *Builder {
	b.grants = g
	return b
}

// WithRedis stores both tables in Redis under prefix. Explicit WithStore, WithLockedSet
// and WithGrantTable values take precedence.
func (b *Builder) WithRedis(client redis.UniversalClient, prefix string) *Builder {
	b.redis = client
	b.redisPrefix = prefix
	return b
}

// WithBoltFile stores both tables in a bbolt file opened at Build and closed by
// [Engine.Close].
func (b *Builder) WithBoltFile(path string) *Builder {
	b.boltPath = path
	return b
}

func (b *Builder) WithEventSource(src EventSource) *Builder {
	b.source = src
	return b
}

func (b *Builder) WithPresenter(p Presenter) *Builder {
	b.presenter = p
	return b
}

// WithSuspender sets the suspender. If it also implements [Resumer] and no resumer was
// set explicitly, it is used for resuming too.
func (b *Builder) WithSuspender(s Suspender) *Builder {
	b.suspender = s
	return b
}

func (b *Builder) WithResumer(r Resumer) *Builder {
	b.resumer = r
	return b
}

func (b *Builder) WithChallengeProvider(p ChallengeProvider) *Builder {
	b.provider = p
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// WithClock replaces the wall clock. Tests pass a clockwork fake clock.
func (b *Builder) WithClock(c clockwork.Clock) *Builder {
	b.clock = c
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and collaborators and returns a ready engine. The
// engine does nothing until [Engine.Run] is called.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.source == nil {
		return nil, errors.New("event source required")
	}
	if b.presenter == nil {
		return nil, errors.New("presenter required")
	}
	if b.suspender == nil {
		return nil, errors.New("suspender required")
	}
	if b.provider == nil {
		return nil, errors.New("challenge provider required")
	}

	// -------- STORES --------
	locked, grants := b.locked, b.grants
	var closers []func() error
	if locked == nil || grants == nil {
		var backend storage.Store
		switch {
		case b.redis != nil:
			backend = redisstore.NewStore(b.redis, b.redisPrefix)
		case b.boltPath != "":
			bs, err := boltstore.NewFromFile(b.boltPath, nil)
			if err != nil {
				return nil, fmt.Errorf("open bolt store: %w", err)
			}
			backend = bs
			closers = append(closers, bs.Close)
		default:
			return nil, errors.New("locked set and grant table required")
		}
		if locked == nil {
			locked = backend
		}
		if grants == nil {
			grants = backend
		}
	}

	clock := b.clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	tickets, err := ticket.NewManager(ticket.Config{
		Issuer: cfg.Ticket.Issuer,
		Key:    cloneBytes(cfg.Ticket.Key),
		Leeway: cfg.Ticket.Leeway,
	}, clock.Now)
	if err != nil {
		for _, c := range closers {
			_ = c()
		}
		return nil, err
	}

	resumer := b.resumer
	if resumer == nil {
		if r, ok := b.suspender.(Resumer); ok {
			resumer = r
		}
	}

	engine := &Engine{
		config:    cfg,
		clock:     clock,
		log:       logger.Named("guard"),
		locked:    locked,
		grants:    grants,
		source:    b.source,
		presenter: b.presenter,
		suspender: b.suspender,
		resumer:   resumer,
		provider:  b.provider,
		closers:   closers,
		policy:    NewPolicy(cfg.Monitor.SelfAppID, cfg.Monitor.NeutralApps, cfg.Session.GracePeriod),
		tickets:   tickets,
		mon: monitorState{
			cursor: clock.Now().Add(-cfg.Monitor.PollInterval),
			gate:   rate.NewGate(cfg.Monitor.MinSpacing),
		},
		sessions: session.NewRegistry(),
		audit:    newAuditTrail(cfg.Audit, b.auditSink),
		metrics:  NewMetrics(cfg.Metrics),
		ops:      make(chan op),
		closed:   make(chan struct{}),
		loopDone: make(chan struct{}),
	}

	b.built = true

	return engine, nil
}
