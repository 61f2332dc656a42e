package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"xui-sub-hub/internal/config"
	"xui-sub-hub/internal/models"
	"xui-sub-hub/internal/registry"
	"xui-sub-hub/pkg/panelclient"
)

type fakeSession struct {
	inbounds []models.Inbound
	listErr  error
	subs     map[string]string
	subErrs  map[string]error
	host     string
}

func (s *fakeSession) ListInbounds(ctx context.Context) ([]models.Inbound, error) {
	return s.inbounds, s.listErr
}

func (s *fakeSession) FetchSubscription(ctx context.Context, subID string) (string, error) {
	if err, ok := s.subErrs[subID]; ok {
		return "", err
	}
	if text, ok := s.subs[subID]; ok {
		return text, nil
	}
	return "", errors.New("unknown subId " + subID)
}

func (s *fakeSession) ConnectHost() string {
	if s.host != "" {
		return s.host
	}
	return "panel.example.com"
}

type fakeProvider struct {
	sessions map[string]*fakeSession
	authErrs map[string]error
}

func (p *fakeProvider) Authenticate(ctx context.Context, serverID string) (panelclient.Session, error) {
	if err, ok := p.authErrs[serverID]; ok {
		return nil, err
	}
	s, ok := p.sessions[serverID]
	if !ok {
		return nil, errors.New("no session for " + serverID)
	}
	return s, nil
}

type staticPolicies struct {
	policy models.AccessPolicy
}

func (s staticPolicies) GetPolicy(identity string) (models.AccessPolicy, error) {
	return s.policy, nil
}

func testRegistry(ids ...string) *registry.ConfigRegistry {
	servers := make([]config.ServerConfig, 0, len(ids))
	for _, id := range ids {
		servers = append(servers, config.ServerConfig{ID: id, Name: "srv-" + id})
	}
	return registry.NewFromConfig(servers)
}

func inboundWith(t *testing.T, id int, protocol, streamSettings string, clients ...models.ClientCredential) models.Inbound {
	t.Helper()
	settings, err := json.Marshal(models.InboundSettings{Clients: clients, Method: "aes-256-gcm"})
	if err != nil {
		t.Fatalf("failed to marshal settings: %v", err)
	}
	return models.Inbound{
		ID:             id,
		Remark:         "inb",
		Enable:         true,
		Port:           443,
		Protocol:       protocol,
		Settings:       string(settings),
		StreamSettings: streamSettings,
	}
}

func newTestOrchestrator(provider panelclient.Provider, pol models.AccessPolicy, reg registry.Registry) *Orchestrator {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewOrchestrator(provider, staticPolicies{policy: pol}, reg, logger)
}

func fullAccess() models.AccessPolicy {
	return models.DefaultPolicy()
}

const plainTCP = `{"network":"tcp","security":"none"}`

func activeClient(identity, subID string) models.ClientCredential {
	return models.ClientCredential{
		ID:     "b831381d-6324-4d53-ad4f-8cda48b30811",
		Email:  identity,
		Enable: true,
		SubID:  subID,
	}
}

func TestAggregate_UserNotFound(t *testing.T) {
	provider := &fakeProvider{sessions: map[string]*fakeSession{
		"s1": {inbounds: []models.Inbound{
			inboundWith(t, 1, "vless", plainTCP, activeClient("other@example.com", "")),
		}},
	}}
	o := newTestOrchestrator(provider, fullAccess(), testRegistry("s1"))

	res, err := o.Aggregate(context.Background(), Request{Identity: "alice@example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Links) != 0 {
		t.Errorf("links = %v, want empty", res.Links)
	}
	if res.SubscriptionActive {
		t.Error("subscription must be inactive")
	}
	if res.InactiveReason != models.ReasonUserNotFound {
		t.Errorf("inactiveReason = %s, want user-not-found", res.InactiveReason)
	}
}

func TestAggregate_ServerScopeNone(t *testing.T) {
	provider := &fakeProvider{sessions: map[string]*fakeSession{
		"s1": {inbounds: []models.Inbound{
			inboundWith(t, 1, "vless", plainTCP, activeClient("alice@example.com", "")),
		}},
	}}
	pol := models.AccessPolicy{ServerScopeMode: models.ScopeNone, ProtocolScopeMode: models.ScopeAll}
	o := newTestOrchestrator(provider, pol, testRegistry("s1"))

	res, err := o.Aggregate(context.Background(), Request{Identity: "alice@example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.FilteredByPolicy < 1 {
		t.Errorf("filteredByPolicy = %d, want >= 1", res.FilteredByPolicy)
	}
	if len(res.Links) != 0 {
		t.Errorf("links = %v, want empty", res.Links)
	}
	if res.InactiveReason != models.ReasonBlockedByPolicy {
		t.Errorf("inactiveReason = %s, want blocked-by-policy", res.InactiveReason)
	}
}

func TestAggregate_AutoPrefersNative(t *testing.T) {
	provider := &fakeProvider{sessions: map[string]*fakeSession{
		"s1": {
			inbounds: []models.Inbound{
				inboundWith(t, 1, "vmess", plainTCP, activeClient("alice@example.com", "grp1")),
			},
			subs: map[string]string{"grp1": "vmess://native-line"},
		},
	}}
	o := newTestOrchestrator(provider, fullAccess(), testRegistry("s1"))

	res, err := o.Aggregate(context.Background(), Request{Identity: "alice@example.com", Mode: "auto"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.SourceMode != models.SourceNative {
		t.Errorf("sourceMode = %s, want native", res.SourceMode)
	}
	if res.NativeLinks != 1 || res.ReconstructedLinks != 0 {
		t.Errorf("native/reconstructed = %d/%d, want 1/0", res.NativeLinks, res.ReconstructedLinks)
	}
	if len(res.Links) != 1 || res.Links[0] != "vmess://native-line" {
		t.Errorf("links = %v", res.Links)
	}
}

func TestAggregate_AutoFallsBackToReconstruction(t *testing.T) {
	provider := &fakeProvider{sessions: map[string]*fakeSession{
		"s1": {
			inbounds: []models.Inbound{
				inboundWith(t, 1, "vmess", plainTCP, activeClient("alice@example.com", "grp1")),
			},
			subs: map[string]string{"grp1": "no parseable lines here"},
		},
	}}
	o := newTestOrchestrator(provider, fullAccess(), testRegistry("s1"))

	res, err := o.Aggregate(context.Background(), Request{Identity: "alice@example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.SourceMode != models.SourceReconstructed {
		t.Errorf("sourceMode = %s, want reconstructed", res.SourceMode)
	}
	if res.ReconstructedLinks != 1 {
		t.Errorf("reconstructedLinks = %d, want 1", res.ReconstructedLinks)
	}

	foundEmptyWarning := false
	for _, w := range res.Warnings {
		if w.Kind == models.WarnNativeEmpty {
			foundEmptyWarning = true
		}
	}
	if !foundEmptyWarning {
		t.Errorf("warnings = %v, want native-empty", res.Warnings)
	}
}

func TestAggregate_NativeModeNeverReconstructs(t *testing.T) {
	provider := &fakeProvider{sessions: map[string]*fakeSession{
		"s1": {inbounds: []models.Inbound{
			inboundWith(t, 1, "vless", plainTCP, activeClient("alice@example.com", "")),
		}},
	}}
	o := newTestOrchestrator(provider, fullAccess(), testRegistry("s1"))

	res, err := o.Aggregate(context.Background(), Request{Identity: "alice@example.com", Mode: "native"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Links) != 0 {
		t.Errorf("links = %v, want empty", res.Links)
	}
	if res.InactiveReason != models.ReasonNoLinksFound {
		t.Errorf("inactiveReason = %s, want no-links-found", res.InactiveReason)
	}
}

func TestAggregate_DedupAcrossServers(t *testing.T) {
	shared := map[string]string{"grp1": "vless://shared-uri"}
	provider := &fakeProvider{sessions: map[string]*fakeSession{
		"s1": {
			inbounds: []models.Inbound{
				inboundWith(t, 1, "vless", plainTCP, activeClient("alice@example.com", "grp1")),
			},
			subs: shared,
		},
		"s2": {
			inbounds: []models.Inbound{
				inboundWith(t, 2, "vless", plainTCP, activeClient("alice@example.com", "grp1")),
			},
			subs: shared,
		},
	}}
	o := newTestOrchestrator(provider, fullAccess(), testRegistry("s1", "s2"))

	res, err := o.Aggregate(context.Background(), Request{Identity: "alice@example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Links) != 1 {
		t.Errorf("links = %v, want single deduplicated entry", res.Links)
	}
	if res.Total != 1 {
		t.Errorf("total = %d, want 1", res.Total)
	}
	if res.NativeLinks != 2 {
		t.Errorf("nativeLinks = %d, want 2 (dedup applies to the set, not counters)", res.NativeLinks)
	}
}

func TestAggregate_ServerNotFound(t *testing.T) {
	provider := &fakeProvider{sessions: map[string]*fakeSession{}}
	o := newTestOrchestrator(provider, fullAccess(), testRegistry("s1"))

	res, err := o.Aggregate(context.Background(), Request{Identity: "alice@example.com", ServerID: "missing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.ServerNotFound {
		t.Error("serverNotFound must be set")
	}
	if len(res.Links) != 0 {
		t.Errorf("links = %v, want empty", res.Links)
	}
	if res.InactiveReason != "" {
		t.Errorf("inactiveReason = %s, want empty (distinct from serverNotFound)", res.InactiveReason)
	}
}

func TestAggregate_AllExpiredOrDisabled(t *testing.T) {
	expired := activeClient("alice@example.com", "")
	expired.ExpiryTime = time.Now().Add(-time.Hour).UnixMilli()
	disabled := activeClient("alice@example.com", "")
	disabled.Enable = false

	provider := &fakeProvider{sessions: map[string]*fakeSession{
		"s1": {inbounds: []models.Inbound{
			inboundWith(t, 1, "vless", plainTCP, expired, disabled),
		}},
	}}
	o := newTestOrchestrator(provider, fullAccess(), testRegistry("s1"))

	res, err := o.Aggregate(context.Background(), Request{Identity: "alice@example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.MatchedClientsRaw != 2 || res.MatchedClientsActive != 0 {
		t.Errorf("raw/active = %d/%d, want 2/0", res.MatchedClientsRaw, res.MatchedClientsActive)
	}
	if res.FilteredExpired != 1 || res.FilteredDisabled != 1 {
		t.Errorf("expired/disabled = %d/%d, want 1/1", res.FilteredExpired, res.FilteredDisabled)
	}
	if res.InactiveReason != models.ReasonAllExpiredOrDisabled {
		t.Errorf("inactiveReason = %s", res.InactiveReason)
	}
}

func TestAggregate_PanelFailureIsIsolated(t *testing.T) {
	provider := &fakeProvider{
		sessions: map[string]*fakeSession{
			"good": {inbounds: []models.Inbound{
				inboundWith(t, 1, "vless", plainTCP, activeClient("alice@example.com", "")),
			}},
		},
		authErrs: map[string]error{"bad": errors.New("connection refused")},
	}
	o := newTestOrchestrator(provider, fullAccess(), testRegistry("good", "bad"))

	res, err := o.Aggregate(context.Background(), Request{Identity: "alice@example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Links) != 1 {
		t.Errorf("links = %v, want one reconstructed link from the healthy panel", res.Links)
	}

	foundFetchWarning := false
	for _, w := range res.Warnings {
		if w.Kind == models.WarnServerFetchError && w.Server == "srv-bad" {
			foundFetchWarning = true
		}
	}
	if !foundFetchWarning {
		t.Errorf("warnings = %v, want server-fetch-error for srv-bad", res.Warnings)
	}
}

func TestAggregate_ProtocolPolicyFiltering(t *testing.T) {
	provider := &fakeProvider{sessions: map[string]*fakeSession{
		"s1": {inbounds: []models.Inbound{
			inboundWith(t, 1, "vmess", plainTCP, activeClient("alice@example.com", "")),
		}},
	}}
	pol := models.AccessPolicy{
		ServerScopeMode:   models.ScopeAll,
		ProtocolScopeMode: models.ScopeSelected,
		AllowedProtocols:  []string{"vless"},
	}
	o := newTestOrchestrator(provider, pol, testRegistry("s1"))

	res, err := o.Aggregate(context.Background(), Request{Identity: "alice@example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.FilteredByPolicy != 1 {
		t.Errorf("filteredByPolicy = %d, want 1", res.FilteredByPolicy)
	}
	if res.InactiveReason != models.ReasonBlockedByPolicy {
		t.Errorf("inactiveReason = %s", res.InactiveReason)
	}
}

func TestAggregate_RealityFailureIsSkippedNotFatal(t *testing.T) {
	brokenReality := `{"network":"tcp","security":"reality","realitySettings":{"serverNames":["sni.example.org"],"settings":{"fingerprint":"chrome"}}}`
	provider := &fakeProvider{sessions: map[string]*fakeSession{
		"s1": {inbounds: []models.Inbound{
			inboundWith(t, 1, "vless", brokenReality, activeClient("alice@example.com", "")),
		}},
	}}
	o := newTestOrchestrator(provider, fullAccess(), testRegistry("s1"))

	res, err := o.Aggregate(context.Background(), Request{Identity: "alice@example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Links) != 0 {
		t.Errorf("links = %v, want empty", res.Links)
	}
	if len(res.Skipped) != 1 {
		t.Fatalf("skipped = %v, want one entry", res.Skipped)
	}
	if !strings.Contains(res.Skipped[0].Reason, "reality") {
		t.Errorf("skip reason = %q, want mention of reality", res.Skipped[0].Reason)
	}
	if res.InactiveReason != models.ReasonNoLinksFound {
		t.Errorf("inactiveReason = %s, want no-links-found", res.InactiveReason)
	}
}

func TestAggregate_UnsupportedProtocolWarn(t *testing.T) {
	provider := &fakeProvider{sessions: map[string]*fakeSession{
		"s1": {inbounds: []models.Inbound{
			inboundWith(t, 1, "wireguard", plainTCP, activeClient("alice@example.com", "")),
			inboundWith(t, 2, "vless", plainTCP, activeClient("alice@example.com", "")),
		}},
	}}
	o := newTestOrchestrator(provider, fullAccess(), testRegistry("s1"))

	res, err := o.Aggregate(context.Background(), Request{Identity: "alice@example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Links) != 1 {
		t.Errorf("links = %v, want the vless link only", res.Links)
	}

	foundUnsupported := false
	for _, w := range res.Warnings {
		if w.Kind == models.WarnUnsupportedProtocol {
			foundUnsupported = true
		}
	}
	if !foundUnsupported {
		t.Errorf("warnings = %v, want unsupported-protocol entry", res.Warnings)
	}
}

func TestAggregate_Idempotent(t *testing.T) {
	provider := &fakeProvider{sessions: map[string]*fakeSession{
		"s1": {
			inbounds: []models.Inbound{
				inboundWith(t, 1, "vless", plainTCP, activeClient("alice@example.com", "grp1")),
				inboundWith(t, 2, "trojan", plainTCP, models.ClientCredential{
					Password: "pw", Email: "alice@example.com", Enable: true,
				}),
			},
			subs: map[string]string{"grp1": "not a link payload"},
		},
		"s2": {inbounds: []models.Inbound{
			inboundWith(t, 3, "vmess", plainTCP, activeClient("alice@example.com", "")),
		}},
	}}
	o := newTestOrchestrator(provider, fullAccess(), testRegistry("s1", "s2"))

	first, err := o.Aggregate(context.Background(), Request{Identity: "alice@example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := o.Aggregate(context.Background(), Request{Identity: "alice@example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a, b := append([]string(nil), first.Links...), append([]string(nil), second.Links...)
	sort.Strings(a)
	sort.Strings(b)
	if len(a) != len(b) {
		t.Fatalf("link counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("links differ at %d: %q vs %q", i, a[i], b[i])
		}
	}
	if first.InactiveReason != second.InactiveReason {
		t.Errorf("inactiveReason differs: %s vs %s", first.InactiveReason, second.InactiveReason)
	}
}

func TestAggregate_EmptyIdentity(t *testing.T) {
	o := newTestOrchestrator(&fakeProvider{}, fullAccess(), testRegistry("s1"))
	if _, err := o.Aggregate(context.Background(), Request{Identity: "  "}); err == nil {
		t.Fatal("expected error for empty identity")
	}
}

func TestAggregate_PerServerOrdering(t *testing.T) {
	provider := &fakeProvider{sessions: map[string]*fakeSession{
		"b": {inbounds: nil},
		"a": {inbounds: nil},
		"c": {inbounds: nil},
	}}
	o := newTestOrchestrator(provider, fullAccess(), testRegistry("b", "a", "c"))

	res, err := o.Aggregate(context.Background(), Request{Identity: "alice@example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	names := make([]string, 0, len(res.PerServer))
	for _, r := range res.PerServer {
		names = append(names, r.ServerName)
	}
	if !sort.StringsAreSorted(names) {
		t.Errorf("per-server results not sorted by name: %v", names)
	}
}
