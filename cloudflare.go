package ddns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/cloudflare/cloudflare-go"
	"go.uber.org/zap"
)

// NewCloudflareDispatcher constructs a Dispatcher that manages A and AAAA records through the Cloudflare API.
// The credential passed to Dispatch must be an API token with DNS edit permission for the zone.
func NewCloudflareDispatcher() *CloudflareDispatcher {
	return &CloudflareDispatcher{comment: "managed by ddnsclient"}
}

// CloudflareDispatcher implements ddns.Dispatcher.
type CloudflareDispatcher struct {
	httpClient *http.Client
	logger     *zap.Logger
	comment    string // optional comment to attach to each new DNS entry
}

func (cf *CloudflareDispatcher) SetHTTPClient(c *http.Client) { cf.httpClient = c }
func (cf *CloudflareDispatcher) SetLogger(l *zap.Logger)      { cf.logger = l }

// Dispatch replaces the domain's A (and AAAA, when req.IPv6 is set) records with the requested addresses.
// Records of a family not present in req are left alone.
func (cf *CloudflareDispatcher) Dispatch(ctx context.Context, req UpdateRequest, cred Credential) (UpdateOutcome, error) {
	out := UpdateOutcome{NewIP: req.IPv4}
	if err := req.validate(); err != nil {
		return out, err
	}
	if cred.Value == "" {
		return out, ErrAuthMissing
	}
	ctx, cancel := context.WithTimeout(ctx, DispatchTimeout)
	defer cancel()

	opts := []cloudflare.Option{}
	if cf.httpClient != nil {
		opts = append(opts, cloudflare.HTTPClient(cf.httpClient))
	}
	api, err := cloudflare.NewWithAPIToken(cred.Value, opts...)
	if err != nil {
		return cf.fail(out, rejectedError(0, "", fmt.Sprintf("error creating cloudflare api client: %s", err)))
	}

	if err := cf.setRecords(ctx, api, req); err != nil {
		return cf.fail(out, classifyCloudflare(err))
	}
	out.Applied = true
	return out, nil
}

func (cf *CloudflareDispatcher) setRecords(ctx context.Context, api *cloudflare.API, req UpdateRequest) error {
	zid, err := getZoneIDFromDomain(ctx, api, req.Domain)
	if err != nil {
		return fmt.Errorf("unable to get zone ID for %s: %w", req.Domain, err)
	}
	cf.log().Debug("got zone ID", zap.String("zone_id", zid))

	want := []Addr{req.IPv4}
	if req.IPv6.IsValid() {
		want = append(want, req.IPv6)
	}

	for _, a := range want {
		rt := a.Family().recordType()
		records, _, err := api.ListDNSRecords(ctx, cloudflare.ZoneIdentifier(zid), cloudflare.ListDNSRecordsParams{
			Type: rt,
			Name: req.Domain,
		})
		if err != nil {
			return fmt.Errorf("error listing %s records: %w", rt, err)
		}
		cf.log().Debug("found existing records", zap.String("type", rt), zap.Int("count", len(records)))

		found := false
		for _, r := range records {
			if r.Content == a.String() && r.TTL == req.TTL {
				found = true
				continue
			}
			cf.log().Debug("deleting DNS record", zap.String("id", r.ID), zap.String("content", r.Content))
			if err := api.DeleteDNSRecord(ctx, cloudflare.ZoneIdentifier(zid), r.ID); err != nil {
				return fmt.Errorf("unable to delete DNS record %s: %w", r.ID, err)
			}
		}
		if found {
			cf.log().Debug("record already exists", zap.Stringer("addr", a))
			continue
		}

		cf.log().Debug("creating record", zap.Stringer("addr", a))
		if _, err := api.CreateDNSRecord(ctx, cloudflare.ZoneIdentifier(zid), cloudflare.CreateDNSRecordParams{
			Type:    rt,
			Name:    req.Domain,
			Content: a.String(),
			ZoneID:  zid,
			TTL:     req.TTL,
			Comment: cf.comment,
		}); err != nil {
			return fmt.Errorf("error creating DNS record: %w", err)
		}
	}
	return nil
}

// getZoneIDFromDomain picks the longest zone name that is a suffix of domain.
func getZoneIDFromDomain(ctx context.Context, api *cloudflare.API, domain string) (zid string, err error) {
	zones, err := api.ListZones(ctx)
	if err != nil {
		return "", fmt.Errorf("error listing zones: %w", err)
	}
	names := make(map[string]string, len(zones))
	for _, z := range zones {
		names[z.Name] = z.ID
	}
	if zid = longestZone(domain, names); zid == "" {
		return "", fmt.Errorf("unable to find a zone matching \"%s\"", domain)
	}
	return zid, nil
}

// longestZone returns the ID of the longest zone that domain equals or is a subdomain of.
func longestZone(domain string, zones map[string]string) (zid string) {
	domain = strings.TrimSuffix(domain, ".")
	max := 0
	for name, id := range zones {
		if (domain == name || strings.HasSuffix(domain, "."+name)) && len(name) > max {
			max, zid = len(name), id
		}
	}
	return zid
}

// classifyCloudflare treats anything that never got an API answer as a network error.
func classifyCloudflare(err error) *UpdateError {
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return networkError(0, err)
	}
	return &UpdateError{Kind: KindServerRejected, Err: err}
}

func (cf *CloudflareDispatcher) fail(out UpdateOutcome, err *UpdateError) (UpdateOutcome, error) {
	out.ErrKind = err.Kind
	return out, err
}

func (cf *CloudflareDispatcher) log() *zap.Logger {
	if cf.logger == nil {
		return zap.NewNop()
	}
	return cf.logger
}
