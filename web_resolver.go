package ddns

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
	"go.uber.org/zap"
)

// NewWebResolver constructs a resolver which uses external web services to look up the "public" IP address.
//
// Each provider URL must speak http and return status "200 OK",
// with the address as the entire response body, surrounding whitespace aside.
// All other responses are considered a failure of that provider.
//
// Providers are queried one at a time in list order, starting with the preferred one (see Attempts),
// and the first valid answer wins.
// Nil lists fall back to DefaultIPv4Providers and DefaultIPv6Providers.
//
// The recommended approach is to run your own service over https and set it as preferred.
func NewWebResolver(ipv4, ipv6 []string) *WebResolver {
	if ipv4 == nil {
		ipv4 = DefaultIPv4Providers
	}
	if ipv6 == nil {
		ipv6 = DefaultIPv6Providers
	}
	return &WebResolver{
		IPv4Providers: ipv4,
		IPv6Providers: ipv6,
	}
}

// WebResolver resolves addresses over HTTP. Construct it with NewWebResolver.
type WebResolver struct {
	IPv4Providers []string
	IPv6Providers []string
	PreferredIPv4 string
	PreferredIPv6 string

	httpClient *http.Client
	logger     *zap.Logger
	recorder   Recorder
}

func (wr *WebResolver) SetHTTPClient(c *http.Client) { wr.httpClient = c }
func (wr *WebResolver) SetLogger(l *zap.Logger)      { wr.logger = l }
func (wr *WebResolver) SetRecorder(r Recorder)       { wr.recorder = r }

// ResolveIPv4 implements ddns.Resolver.
// It fails with ErrIPUnavailable when no provider returned a valid address.
func (wr *WebResolver) ResolveIPv4(ctx context.Context) (Addr, error) {
	return FirstValid(ctx, IPv4, Attempts(wr.IPv4Providers, wr.PreferredIPv4), wr.fetcher(IPv4))
}

// ResolveIPv6 implements ddns.Resolver.
// IPv6 is optional, so exhaustion is reported as an absent address rather than an error.
func (wr *WebResolver) ResolveIPv6(ctx context.Context) (Addr, bool) {
	a, err := FirstValid(ctx, IPv6, Attempts(wr.IPv6Providers, wr.PreferredIPv6), wr.fetcher(IPv6))
	if err != nil {
		wr.log().Debug("IPv6 unavailable", zap.Error(err))
		return Addr{}, false
	}
	return a, true
}

func (wr *WebResolver) fetcher(family Family) FetchFunc {
	return func(ctx context.Context, e Endpoint) (string, error) {
		s, err := wr.lookup(ctx, e.URL)
		if err != nil {
			wr.log().Debug("provider failed",
				zap.Stringer("family", family),
				zap.String("provider", e.URL),
				zap.Error(err))
			wr.rec().ProviderFailed(family, e.URL)
		}
		return s, err
	}
}

func (wr *WebResolver) lookup(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Accept", "text/plain")

	httpclient := wr.httpClient
	if httpclient == nil {
		httpclient = defaultHTTPClient
	}

	resp, err := httpclient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("http request returned %s", resp.Status)
	}

	// the whole body must be the address; a longer body is a portal page or an error document
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxAnswerSize+1))
	if err != nil {
		return "", fmt.Errorf("error reading response body: %w", err)
	}
	if len(b) > maxAnswerSize {
		return "", fmt.Errorf("response body exceeds %d bytes", maxAnswerSize)
	}
	return strings.TrimSpace(string(b)), nil
}

const maxAnswerSize = 256

func (wr *WebResolver) log() *zap.Logger {
	if wr.logger == nil {
		return zap.NewNop()
	}
	return wr.logger
}

func (wr *WebResolver) rec() Recorder {
	if wr.recorder == nil {
		return nopRecorder{}
	}
	return wr.recorder
}

var defaultHTTPClient = cleanhttp.DefaultPooledClient()
