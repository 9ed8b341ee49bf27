package feishu

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kart-io/clawprobe/pkg/config"
	"github.com/kart-io/clawprobe/pkg/logger"
	"github.com/kart-io/clawprobe/pkg/observability"
)

// MissingCredentialsError is reported when the app id or secret is empty
const MissingCredentialsError = "missing credentials (appId, appSecret)"

// ProbeResult is the outcome of one probe. Empty fields are omitted from JSON.
type ProbeResult struct {
	OK        bool   `json:"ok"`
	AppID     string `json:"appId,omitempty"`
	BotName   string `json:"botName,omitempty"`
	BotOpenID string `json:"botOpenId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ClientFactory builds an API client for one set of credentials. It must not
// perform network I/O.
type ClientFactory func(creds Credentials) (API, error)

// Prober checks whether Feishu app credentials work and reports the bot
// identity. Successful identities are cached per app id so that later probes
// only need a quota-exempt token refresh. The default client factory shares
// one HTTP client and one rate limiter per app id across probes.
type Prober struct {
	store     BotInfoStore
	factory   ClientFactory
	cfg       config.FeishuConfig
	logger    logger.Logger
	telemetry *observability.TelemetryProvider

	httpClient *http.Client
	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter
}

// ProberOption configures a Prober
type ProberOption func(*Prober)

// WithStore sets the bot info store (default: a new in-memory store)
func WithStore(store BotInfoStore) ProberOption {
	return func(p *Prober) { p.store = store }
}

// WithClientFactory replaces how API clients are built
func WithClientFactory(factory ClientFactory) ProberOption {
	return func(p *Prober) { p.factory = factory }
}

// WithProberHTTPClient sets the HTTP client shared by default-factory clients
func WithProberHTTPClient(hc *http.Client) ProberOption {
	return func(p *Prober) { p.httpClient = hc }
}

// WithClientConfig sets connection settings for the default client factory
func WithClientConfig(cfg *config.FeishuConfig) ProberOption {
	return func(p *Prober) {
		if cfg != nil {
			p.cfg = *cfg
		}
	}
}

// WithProberLogger sets the prober logger
func WithProberLogger(log logger.Logger) ProberOption {
	return func(p *Prober) { p.logger = logger.OrDiscard(log) }
}

// WithProberTelemetry traces probes and records probe metrics
func WithProberTelemetry(tp *observability.TelemetryProvider) ProberOption {
	return func(p *Prober) { p.telemetry = tp }
}

// NewProber creates a prober
func NewProber(opts ...ProberOption) *Prober {
	p := &Prober{
		cfg:    *DefaultConfig(),
		logger: logger.Discard,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.store == nil {
		p.store = NewMemoryBotInfoStore()
	}
	if p.factory == nil {
		p.factory = p.defaultFactory
	}
	SetDefaults(&p.cfg)
	if p.httpClient == nil {
		p.httpClient = createHTTPClient(p.cfg.Timeout)
	}
	p.limiters = make(map[string]*rate.Limiter)

	return p
}

func (p *Prober) defaultFactory(creds Credentials) (API, error) {
	return NewClient(creds,
		WithConfig(&p.cfg),
		WithHTTPClient(p.httpClient),
		WithLimiter(p.limiter(creds.AppID)),
		WithLogger(p.logger),
		WithTelemetry(p.telemetry),
	)
}

// limiter returns the outbound limiter of appID, creating it on first use
func (p *Prober) limiter(appID string) *rate.Limiter {
	p.limitersMu.Lock()
	defer p.limitersMu.Unlock()

	l, ok := p.limiters[appID]
	if !ok {
		l = NewLimiter(p.cfg.RateLimit)
		p.limiters[appID] = l
	}
	return l
}

// Close releases idle connections of the shared HTTP client
func (p *Prober) Close() {
	p.httpClient.CloseIdleConnections()
}

// Store returns the bot info store used by the prober
func (p *Prober) Store() BotInfoStore {
	return p.store
}

// Probe checks creds and returns the bot identity. It never returns an error;
// every failure is reported in the result.
func (p *Prober) Probe(ctx context.Context, creds *Credentials) ProbeResult {
	start := time.Now()

	if !creds.Complete() {
		p.telemetry.RecordProbe(ctx, "", false, observability.PathInvalid, time.Since(start))
		return ProbeResult{OK: false, Error: MissingCredentialsError}
	}

	ctx, span := p.telemetry.TraceProbe(ctx, creds.AppID)
	defer span.End()

	result, path := p.probe(ctx, *creds)

	if result.OK {
		p.telemetry.SetSpanSuccess(span)
	} else {
		p.telemetry.SetSpanError(span, probeError(result.Error))
	}
	p.telemetry.RecordProbe(ctx, creds.AppID, result.OK, path, time.Since(start))

	return result
}

func (p *Prober) probe(ctx context.Context, creds Credentials) (ProbeResult, string) {
	cached, hasCached, err := p.store.Get(ctx, creds.AppID)
	if err != nil {
		p.logger.Warn("Bot info store read failed, probing without cache", "appId", creds.AppID, "error", err)
		hasCached = false
	}

	client, err := p.factory(creds)
	if err != nil {
		return ProbeResult{OK: false, AppID: creds.AppID, Error: err.Error()}, observability.PathFull
	}

	if hasCached {
		_, err := client.TenantAccessToken(ctx)
		if err == nil {
			return ProbeResult{
				OK:        true,
				AppID:     creds.AppID,
				BotName:   cached.BotName,
				BotOpenID: cached.BotOpenID,
			}, observability.PathCached
		}
		p.logger.Debug("Token refresh failed, falling back to full probe", "appId", creds.AppID, "error", err)
	}

	resp, err := client.BotInfo(ctx)
	if err != nil {
		return ProbeResult{OK: false, AppID: creds.AppID, Error: err.Error()}, observability.PathFull
	}

	if resp.Code != 0 {
		return ProbeResult{
			OK:    false,
			AppID: creds.AppID,
			Error: NewAPIError(resp.Code, resp.Msg).Error(),
		}, observability.PathFull
	}

	info := BotInfo{}
	if bot := resp.Bot(); bot != nil {
		info.BotName = bot.BotName
		info.BotOpenID = bot.OpenID
	}

	if err := p.store.Set(ctx, creds.AppID, info); err != nil {
		p.logger.Warn("Failed to cache bot info", "appId", creds.AppID, "error", err)
	}

	p.logger.Debug("Feishu bot probed", "appId", creds.AppID, "botName", info.BotName)

	return ProbeResult{
		OK:        true,
		AppID:     creds.AppID,
		BotName:   info.BotName,
		BotOpenID: info.BotOpenID,
	}, observability.PathFull
}

type probeError string

func (e probeError) Error() string { return string(e) }
