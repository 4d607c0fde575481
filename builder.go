package goPortal

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	internalaudit "github.com/MrEthical07/goPortal/internal/audit"
	"github.com/MrEthical07/goPortal/internal/flows"
	internalmetrics "github.com/MrEthical07/goPortal/internal/metrics"
	"github.com/MrEthical07/goPortal/credential"
	"github.com/MrEthical07/goPortal/permission"
	"github.com/MrEthical07/goPortal/rbac"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const instrumentationName = "github.com/MrEthical07/goPortal"

// Builder assembles a [Client].
//
// Builder instances are intended to be configured during initialization and
// then discarded; Build may be called once.
type Builder struct {
	config Config

	store    credential.Store
	redis    redis.UniversalClient
	http     *http.Client
	logger   *slog.Logger
	tracer   trace.TracerProvider
	auditSnk AuditSink
	renewer  Renewer
	table    *permission.Table
	routes   *rbac.Routes

	built bool
}

// New returns a builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBaseURL overrides Backend.BaseURL.
func (b *Builder) WithBaseURL(base string) *Builder {
	b.config.Backend.BaseURL = base
	return b
}

// WithTrustedOrigins appends origins (scheme://host[:port]) that may receive
// the bearer credential in addition to the backend itself.
func (b *Builder) WithTrustedOrigins(origins ...string) *Builder {
	b.config.Backend.TrustedOrigins = append(b.config.Backend.TrustedOrigins, origins...)
	return b
}

// WithStore injects the credential store. It takes precedence over the
// Store section of the configuration.
func (b *Builder) WithStore(store credential.Store) *Builder {
	b.store = store
	return b
}

// WithRedis supplies the client used by the redis store. The caller keeps
// ownership and must close it.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithHTTPClient replaces the transport. Its Timeout wins over
// Backend.Timeout.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.http = client
	return b
}

// WithLogger sets the structured logger. The default discards output.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithTracerProvider sets the provider spans are started from. The default
// is the global otel provider.
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracer = tp
	return b
}

// WithAuditSink sets the sink of the audit dispatcher and enables auditing.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSnk = sink
	b.config.Audit.Enabled = true
	return b
}

// WithRenewer replaces the HTTP renewal exchange.
func (b *Builder) WithRenewer(r Renewer) *Builder {
	b.renewer = r
	return b
}

// WithPermissionTable replaces the built-in role -> permission table.
func (b *Builder) WithPermissionTable(t *permission.Table) *Builder {
	b.table = t
	return b
}

// WithRoutes replaces the slug -> dashboard table built from Portal config.
func (b *Builder) WithRoutes(r rbac.Routes) *Builder {
	b.routes = &r
	return b
}

// WithSingleFlight toggles shared renewal exchanges.
func (b *Builder) WithSingleFlight(enabled bool) *Builder {
	b.config.Renewal.SingleFlight = enabled
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the call latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready client.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base, err := url.Parse(strings.TrimRight(cfg.Backend.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("Backend BaseURL: %w", err)
	}

	c := &Client{
		config:  cfg,
		baseURL: base,
		origins: map[string]struct{}{originKey(base): {}},
		http:    b.http,
		logger:  b.logger,
		renewer: b.renewer,
	}
	for _, raw := range cfg.Backend.TrustedOrigins {
		origin, _ := parseOrigin(raw)
		c.origins[origin] = struct{}{}
	}

	// -------- TRANSPORT --------
	if c.http == nil {
		c.http = &http.Client{Timeout: cfg.Backend.Timeout}
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	c.logger = c.logger.With("component", "goportal")

	tp := b.tracer
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	c.tracer = tp.Tracer(instrumentationName, trace.WithInstrumentationVersion(Version))

	// -------- CREDENTIAL STORE --------
	store, owned, err := buildStore(cfg.Store, b.store, b.redis)
	if err != nil {
		return nil, err
	}
	c.store = store
	c.ownedRedis = owned

	// -------- RBAC --------
	routes := cfg.routes()
	if b.routes != nil {
		routes = *b.routes
	}
	c.resolver = rbac.NewResolver(b.table, routes)

	// -------- RENEWAL --------
	if c.renewer == nil {
		c.renewer = &httpRenewer{client: c}
	}
	if cfg.Renewal.SingleFlight {
		c.group = &singleflight.Group{}
	}

	// -------- OBSERVABILITY --------
	c.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		Logger:     c.logger,
	}, b.auditSnk)
	c.metrics = internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Metrics.Enabled,
		EnableLatency: cfg.Metrics.EnableLatencyHistograms,
	})

	warn := func(msg string, args ...any) { c.logger.Warn(msg, args...) }
	c.flow = flows.New(flows.Deps{
		Call: flows.CallDeps{
			Store: c.store,
			Renew: c.renew,
			OnTransition: func(from, to flows.CallState) {
				c.logger.Debug("call transition", "from", from.String(), "to", to.String())
			},
			Warn: warn,
		},
		Renewal: flows.RenewalDeps{
			Exchange: c.exchangeRefresh,
			Store:    c.store,
			Warn:     warn,
		},
		Login: flows.LoginDeps{
			Exchange:     c.exchangeLogin,
			Store:        c.store,
			RoleMismatch: ErrRoleMismatch,
			Warn:         warn,
		},
		Resume: flows.ResumeDeps{
			Store:       c.store,
			IsTransport: isTransportFailure,
			Warn:        warn,
		},
		Logout: flows.LogoutDeps{
			Store:  c.store,
			Forget: c.forget,
			Warn:   warn,
		},
	})

	b.built = true

	return c, nil
}

func buildStore(cfg StoreConfig, injected credential.Store, rdb redis.UniversalClient) (credential.Store, redis.UniversalClient, error) {
	if injected != nil {
		return injected, nil, nil
	}

	switch cfg.Kind {
	case StoreFile:
		fs, err := credential.NewFileStore(cfg.FilePath)
		if err != nil {
			return nil, nil, err
		}
		return fs, nil, nil
	case StoreRedis:
		var owned redis.UniversalClient
		if rdb == nil {
			if cfg.RedisAddr == "" {
				return nil, nil, errors.New("redis store requires a redis client or Store RedisAddr")
			}
			owned = redis.NewClient(&redis.Options{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			})
			rdb = owned
		}
		return credential.NewRedisStore(rdb, cfg.RedisKey, cfg.RedisTTL), owned, nil
	default:
		return credential.NewMemoryStore(), nil, nil
	}
}
