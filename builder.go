package authflow

import (
	"errors"
	"log/slog"

	"github.com/kurabu/authflow/internal/rate"
	"github.com/kurabu/authflow/jwt"
	"github.com/kurabu/authflow/password"
	"github.com/kurabu/authflow/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. Configure it once, call Build once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	repo      UserRepository
	mailer    Mailer
	exchanger TokenExchanger
	auditSink AuditSink
	logger    *slog.Logger
	afterFunc session.AfterFunc

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis backs the register throttle with Redis so every instance
// shares one budget. Without it an in-process limiter is used.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithRepository(repo UserRepository) *Builder {
	b.repo = repo
	return b
}

// WithMailer sets the verification mail transport. Without one, codes are
// not delivered and StartRegister still succeeds.
func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

func (b *Builder) WithExchanger(x TokenExchanger) *Builder {
	b.exchanger = x
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAfterFunc replaces the timer used for session expiry. Tests pass a
// function that records timers and fires them on demand.
func (b *Builder) WithAfterFunc(fn session.AfterFunc) *Builder {
	b.afterFunc = fn
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

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.repo == nil {
		return nil, errors.New("user repository required")
	}
	if b.exchanger == nil {
		return nil, errors.New("token exchanger required")
	}

	hasher, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	var jwtManager *jwt.Manager
	if cfg.Token.Enabled {
		jwtManager, err = jwt.NewManager(jwt.Config{
			TTL:           cfg.Token.TTL,
			SigningMethod: jwt.SigningMethod(cfg.Token.SigningMethod),
			PrivateKey:    cfg.Token.PrivateKey,
			PublicKey:     cfg.Token.PublicKey,
			Issuer:        cfg.Token.Issuer,
			Audience:      cfg.Token.Audience,
		})
		if err != nil {
			return nil, err
		}
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		config:     cfg,
		metrics:    NewMetrics(cfg.Metrics),
		hasher:     hasher,
		policy:     password.Policy{MinLength: cfg.Password.MinLength, MaxLength: cfg.Password.MaxLength},
		jwtManager: jwtManager,
		repo:       b.repo,
		mailer:     b.mailer,
		exchanger:  b.exchanger,
		logger:     logger,
	}

	storeOpts := []session.Option{session.WithOnExpire(e.onExpire)}
	if b.afterFunc != nil {
		storeOpts = append(storeOpts, session.WithAfterFunc(b.afterFunc))
	}
	e.store = session.NewStore(storeOpts...)

	if cfg.Register.enabled() {
		rateCfg := rate.Config{
			EnableEmailThrottle: cfg.Register.EnableEmailThrottle,
			EnableIPThrottle:    cfg.Register.EnableIPThrottle,
			MaxAttempts:         cfg.Register.MaxAttempts,
			Window:              cfg.Register.Window,
		}
		if b.redis != nil {
			e.limiter = rate.NewRedis(b.redis, rateCfg)
		} else {
			e.limiter = rate.NewLocal(rateCfg)
		}
	}

	e.audit = newAuditDispatcher(cfg.Audit, b.auditSink, logger)

	b.built = true
	return e, nil
}
