package ddns

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Resolver discovers the current addresses.
//
// IPv4 is required: ResolveIPv4 fails with ErrIPUnavailable when it cannot find one.
// IPv6 is optional: ResolveIPv6 reports false instead of failing.
type Resolver interface {
	ResolveIPv4(ctx context.Context) (Addr, error)
	ResolveIPv6(ctx context.Context) (Addr, bool)
}

// Config is the caller-owned configuration threaded through every tick.
type Config struct {
	Domain     string
	TTL        int
	IPv6       bool // also resolve and send an IPv6 address
	Force      bool // update even when the addresses are unchanged
	Credential Credential
}

// DefaultTTL is used when Config.TTL is zero.
const DefaultTTL = 300

// New constructs a Client for cfg.Domain.
//
// A Dispatcher must be registered with UsingDispatcher, UsingHTTPEndpoint or UsingCloudflare.
// The resolver defaults to a WebResolver with the default providers,
// and state defaults to a FileStore in DefaultStateDir.
func New(cfg Config, options ...ClientOption) (*Client, error) {
	if cfg.Domain == "" {
		return nil, fmt.Errorf("ddns.New: domain cannot be empty")
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.TTL < 0 {
		return nil, fmt.Errorf("ddns.New: ttl cannot be negative")
	}
	c := &Client{
		cfg:      cfg,
		Resolver: NewWebResolver(nil, nil),
		recorder: nopRecorder{},
		now:      time.Now,
	}
	for i, opt := range options {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("ddns.New: option %d returned an error: %s", i, err)
		}
	}

	if c.Dispatcher == nil {
		return nil, fmt.Errorf("ddns.New: no dispatcher was registered and there is no default option - use ddns.UsingHTTPEndpoint or similar")
	}
	if c.store == nil {
		dir, err := DefaultStateDir()
		if err != nil {
			return nil, fmt.Errorf("ddns.New: %w", err)
		}
		c.store = NewFileStore(dir, nil)
	}

	// this lets us propagate the logger to dependencies that use one if WithLogger was called before all of the dependencies were registered
	withLogger(c.logger)(c)
	return c, nil
}

type ClientOption func(*Client) error

// UsingResolver replaces the default WebResolver.
func UsingResolver(resolver Resolver) ClientOption {
	return func(c *Client) error {
		if resolver == nil {
			resolver = NewWebResolver(nil, nil)
		}
		c.Resolver = resolver
		return nil
	}
}

// UsingWebResolver resolves through the given provider lists, trying preferred URLs first.
// Empty preferred URLs mean the first entry of each list.
func UsingWebResolver(ipv4, ipv6 []string, preferredIPv4, preferredIPv6 string) ClientOption {
	return func(c *Client) error {
		wr := NewWebResolver(ipv4, ipv6)
		wr.PreferredIPv4 = preferredIPv4
		wr.PreferredIPv6 = preferredIPv6
		c.Resolver = wr
		return nil
	}
}

// UsingDispatcher registers the update backend.
func UsingDispatcher(d Dispatcher) ClientOption {
	return func(c *Client) error {
		if d == nil {
			return errors.New("nil dispatcher")
		}
		c.Dispatcher = d
		return nil
	}
}

// UsingHTTPEndpoint sends updates to the JSON update API at endpoint.
func UsingHTTPEndpoint(endpoint string) ClientOption {
	return func(c *Client) error {
		if endpoint == "" {
			return errors.New("update endpoint cannot be empty")
		}
		c.Dispatcher = NewHTTPDispatcher(endpoint)
		return nil
	}
}

// UsingCloudflare manages the domain's records through the Cloudflare API.
func UsingCloudflare() ClientOption {
	return func(c *Client) error {
		c.Dispatcher = NewCloudflareDispatcher()
		return nil
	}
}

// UsingStateStore replaces the default FileStore.
func UsingStateStore(s StateStore) ClientOption {
	return func(c *Client) error {
		if s == nil {
			return errors.New("nil state store")
		}
		c.store = s
		return nil
	}
}

// WithRecorder registers an instrumentation hook.
func WithRecorder(r Recorder) ClientOption {
	return func(c *Client) error {
		if r == nil {
			r = nopRecorder{}
		}
		c.recorder = r
		if wr, ok := c.Resolver.(interface{ SetRecorder(Recorder) }); ok {
			wr.SetRecorder(r)
		}
		return nil
	}
}

func withLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) error {
		if logger == nil {
			logger = zap.NewNop()
		}
		c.logger = logger
		type setLogger interface {
			SetLogger(*zap.Logger)
		}

		if d, ok := c.Dispatcher.(setLogger); ok {
			d.SetLogger(logger)
		}
		if r, ok := c.Resolver.(setLogger); ok {
			r.SetLogger(logger)
		}
		if s, ok := c.store.(*FileStore); ok {
			s.logger = logger
		}
		if wr, ok := c.Resolver.(interface{ SetRecorder(Recorder) }); ok {
			wr.SetRecorder(c.recorder)
		}
		return nil
	}
}

// WithLogger sets the logger for the client and every dependency that accepts one.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// UsingHTTPClient sets the HTTP client used by the resolver and dispatcher.
func UsingHTTPClient(httpclient *http.Client) ClientOption {
	return func(c *Client) error {
		if httpclient == nil {
			httpclient = defaultHTTPClient
		}
		type setHTTPClient interface {
			SetHTTPClient(*http.Client)
		}
		if r, ok := c.Resolver.(setHTTPClient); ok {
			r.SetHTTPClient(httpclient)
		}
		if d, ok := c.Dispatcher.(setHTTPClient); ok {
			d.SetHTTPClient(httpclient)
		}
		return nil
	}
}

// Client runs reconciliation ticks for one domain.
// A Client must not run ticks concurrently; the Scheduler guarantees that.
type Client struct {
	Resolver
	Dispatcher

	cfg      Config
	store    StateStore
	logger   *zap.Logger
	recorder Recorder
	now      func() time.Time
}

// Config returns the client's configuration.
func (c *Client) Config() Config { return c.cfg }

// Result describes one completed tick.
type Result struct {
	Plan    Plan
	Outcome *UpdateOutcome // nil when no update was needed
}

// RunOnce runs a single tick with the configured force flag.
func (c *Client) RunOnce(ctx context.Context) (Result, error) {
	return c.Tick(ctx, c.cfg.Force)
}

// Tick resolves the current addresses, decides whether an update is needed,
// sends it if so, and records the applied addresses on success.
func (c *Client) Tick(ctx context.Context, force bool) (res Result, err error) {
	start := c.now()
	defer func() {
		result := ResultUnchanged
		switch {
		case err != nil:
			result = ResultFailed
		case res.Outcome != nil:
			result = ResultUpdated
		}
		c.recorder.TickCompleted(result, c.now().Sub(start))
	}()

	if c.cfg.Credential.Value == "" {
		return res, fmt.Errorf("%s: %w", c.cfg.Domain, ErrAuthMissing)
	}

	current, err := c.resolve(ctx)
	if err != nil {
		return res, fmt.Errorf("error getting IPs: %w", err)
	}
	c.logger.Debug("resolved addresses",
		zap.Stringer("ipv4", current.IPv4),
		zap.Stringer("ipv6", current.IPv6))

	rec := Reconciler{Store: c.store}
	res.Plan = rec.Evaluate(current, force)
	if !res.Plan.NeedsUpdate() {
		c.logger.Info("no change",
			zap.String("domain", c.cfg.Domain),
			zap.Stringer("ipv4", current.IPv4),
			zap.Stringer("ipv6", current.IPv6))
		return res, nil
	}

	req := UpdateRequest{
		Domain: c.cfg.Domain,
		IPv4:   current.IPv4,
		IPv6:   current.IPv6,
		TTL:    c.cfg.TTL,
	}
	c.logger.Info("updating DNS record",
		zap.String("domain", req.Domain),
		zap.Stringer("ipv4", req.IPv4),
		zap.Stringer("previous_ipv4", res.Plan.PriorV4),
		zap.Stringer("ipv4_decision", res.Plan.IPv4),
		zap.Stringer("ipv6", req.IPv6),
		zap.Stringer("ipv6_decision", res.Plan.IPv6))

	out, err := c.Dispatch(ctx, req, c.cfg.Credential)
	if !out.PreviousIP.IsValid() {
		out.PreviousIP = res.Plan.PriorV4
	}
	res.Outcome = &out
	// requests rejected before sending carry no kind and are not counted
	var ue *UpdateError
	if err == nil || errors.As(err, &ue) {
		c.recorder.UpdateDispatched(out.ErrKind)
	}
	if err != nil {
		return res, fmt.Errorf("error updating %s: %w", req.Domain, err)
	}
	if !out.Applied {
		return res, fmt.Errorf("error updating %s: %w", req.Domain, ErrServerRejected)
	}

	rec.Commit(current)
	c.logger.Info("DNS record updated",
		zap.String("domain", req.Domain),
		zap.Stringer("previous_ip", out.PreviousIP),
		zap.Stringer("new_ip", out.NewIP))
	return res, nil
}

// resolve looks up both families concurrently and waits for both.
func (c *Client) resolve(ctx context.Context) (Resolved, error) {
	var (
		r    Resolved
		err4 error
		wg   sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.IPv4, err4 = c.ResolveIPv4(ctx)
	}()
	if c.cfg.IPv6 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if a, ok := c.ResolveIPv6(ctx); ok {
				r.IPv6 = a
			} else {
				c.logger.Debug("no IPv6 address found; updating IPv4 only")
			}
		}()
	}
	wg.Wait()
	if err4 != nil {
		return Resolved{}, err4
	}
	return r, nil
}
