package ddns

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DispatchTimeout bounds a single call to the update endpoint.
const DispatchTimeout = 30 * time.Second

// UpdateRequest is what gets sent to the DNS provider in one tick.
type UpdateRequest struct {
	Domain string
	IPv4   Addr
	IPv6   Addr // optional
	TTL    int
}

// UpdateOutcome describes the result of one dispatch.
type UpdateOutcome struct {
	Applied    bool
	PreviousIP Addr
	NewIP      Addr
	ErrKind    ErrorKind
}

// Dispatcher sends an update to a DNS provider.
//
// A non-nil error always comes with Applied == false,
// and is an *UpdateError unless the request itself was invalid.
type Dispatcher interface {
	Dispatch(ctx context.Context, req UpdateRequest, cred Credential) (UpdateOutcome, error)
}

// NewHTTPDispatcher constructs a Dispatcher for an update endpoint speaking the JSON update API.
func NewHTTPDispatcher(endpoint string) *HTTPDispatcher {
	return &HTTPDispatcher{Endpoint: endpoint}
}

// HTTPDispatcher posts updates to a single authenticated endpoint.
//
// The request body is {"domain": ..., "ip": ..., "ipv6": ..., "ttl": ...}.
// The endpoint answers {"success": true} or {"success": false, "error": {"code": ..., "message": ...}}.
type HTTPDispatcher struct {
	Endpoint string

	httpClient *http.Client
	logger     *zap.Logger
}

func (d *HTTPDispatcher) SetHTTPClient(c *http.Client) { d.httpClient = c }
func (d *HTTPDispatcher) SetLogger(l *zap.Logger)      { d.logger = l }

type updateBody struct {
	Domain string `json:"domain"`
	IP     string `json:"ip"`
	IPv6   string `json:"ipv6,omitempty"`
	TTL    int    `json:"ttl"`
}

type updateResponse struct {
	Success *bool `json:"success"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}

// Dispatch implements ddns.Dispatcher.
func (d *HTTPDispatcher) Dispatch(ctx context.Context, req UpdateRequest, cred Credential) (UpdateOutcome, error) {
	out := UpdateOutcome{NewIP: req.IPv4}
	if err := req.validate(); err != nil {
		return out, err
	}
	if cred.Value == "" {
		return out, ErrAuthMissing
	}

	body := updateBody{Domain: req.Domain, IP: req.IPv4.String(), TTL: req.TTL}
	if req.IPv6.IsValid() {
		body.IPv6 = req.IPv6.String()
	}
	b, err := json.Marshal(body)
	if err != nil {
		return out, fmt.Errorf("error encoding update: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, DispatchTimeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Endpoint, bytes.NewReader(b))
	if err != nil {
		return out, fmt.Errorf("error creating request: %w", err)
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if cred.IsAPIKey() {
		httpReq.Header.Set("X-API-Key", cred.Value)
	} else {
		httpReq.Header.Set("Authorization", "Bearer "+cred.Value)
	}

	httpclient := d.httpClient
	if httpclient == nil {
		httpclient = defaultHTTPClient
	}
	d.log().Debug("sending update",
		zap.String("request_id", requestID),
		zap.String("domain", req.Domain),
		zap.Stringer("ipv4", req.IPv4),
		zap.Stringer("ipv6", req.IPv6),
		zap.Int("ttl", req.TTL))

	resp, err := httpclient.Do(httpReq)
	if err != nil {
		return d.fail(out, networkError(0, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return d.fail(out, networkError(resp.StatusCode, fmt.Errorf("error reading response: %w", err)))
	}
	if err := classify(resp.StatusCode, raw); err != nil {
		return d.fail(out, err)
	}
	out.Applied = true
	return out, nil
}

// classify maps an endpoint response to nil (applied) or an *UpdateError.
//
// Structured error bodies and 4xx answers are rejections.
// 5xx answers without a structured body are treated as transient network failures.
// A 2xx body that does not acknowledge the update is a rejection.
func classify(status int, raw []byte) *UpdateError {
	var r updateResponse
	parsed := json.Unmarshal(raw, &r) == nil
	ok := status >= 200 && status < 300

	switch {
	case parsed && r.Error != nil:
		return rejectedError(status, r.Error.Code, r.Error.Message)
	case parsed && r.Success != nil && !*r.Success:
		return rejectedError(status, "", r.Message)
	case ok && parsed && r.Success != nil && *r.Success:
		return nil
	case ok:
		return rejectedError(status, "", "malformed response from update endpoint")
	case status >= 500:
		return networkError(status, fmt.Errorf("update endpoint returned %d %s", status, http.StatusText(status)))
	default:
		return rejectedError(status, "", http.StatusText(status))
	}
}

func (d *HTTPDispatcher) fail(out UpdateOutcome, err *UpdateError) (UpdateOutcome, error) {
	out.Applied = false
	out.ErrKind = err.Kind
	return out, err
}

func (d *HTTPDispatcher) log() *zap.Logger {
	if d.logger == nil {
		return zap.NewNop()
	}
	return d.logger
}

func (r UpdateRequest) validate() error {
	if r.Domain == "" {
		return errors.New("update request has no domain")
	}
	if !r.IPv4.IsValid() || r.IPv4.Family() != IPv4 {
		return errors.New("update request has no IPv4 address")
	}
	if r.IPv6.IsValid() && r.IPv6.Family() != IPv6 {
		return fmt.Errorf("update request carries %s in the IPv6 field", r.IPv6)
	}
	return nil
}
