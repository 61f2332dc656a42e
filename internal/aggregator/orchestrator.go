package aggregator

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	apperrors "xui-sub-hub/internal/errors"
	"xui-sub-hub/internal/constants"
	"xui-sub-hub/internal/models"
	"xui-sub-hub/internal/policy"
	"xui-sub-hub/internal/registry"
	"xui-sub-hub/pkg/panelclient"
)

// Request describes one aggregation call.
type Request struct {
	Identity string
	ServerID string // optional narrowing to one registered server
	Mode     string // auto (default), native or reconstructed
}

// Orchestrator fans collection out across all in-scope panels and
// merges their results.
type Orchestrator struct {
	provider panelclient.Provider
	policies policy.Store
	registry registry.Registry
	logger   *logrus.Logger
}

// NewOrchestrator creates a new aggregation orchestrator.
func NewOrchestrator(provider panelclient.Provider, policies policy.Store, reg registry.Registry, logger *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		provider: provider,
		policies: policies,
		registry: reg,
		logger:   logger,
	}
}

// Aggregate queries every in-scope panel for the identity's credentials
// and returns the merged, deduplicated link set with status totals. It
// always returns a structured result for collection-level failures; an
// error is returned only for caller input problems.
func (o *Orchestrator) Aggregate(ctx context.Context, req Request) (*models.AggregationResult, error) {
	identity := strings.TrimSpace(req.Identity)
	if identity == "" {
		return nil, &apperrors.EmptyIdentityError{}
	}
	mode := normalizeMode(req.Mode)

	pol, err := o.policies.GetPolicy(identity)
	if err != nil {
		return nil, err
	}
	pol = pol.Normalize()

	servers := o.registry.ListServers()
	if req.ServerID != "" {
		server, ok := o.registry.Resolve(req.ServerID)
		if !ok {
			o.logger.Warnf("Requested server %s is not registered", req.ServerID)
			return emptyResult(true), nil
		}
		servers = []models.Server{server}
	}

	// One task per panel; each produces an independent result that is
	// folded in after all tasks settle.
	results := make([]models.PerServerResult, len(servers))
	var wg sync.WaitGroup
	for i, server := range servers {
		wg.Add(1)
		go func(i int, server models.Server) {
			defer wg.Done()
			results[i] = o.collectServer(ctx, server, identity, pol, mode)
		}(i, server)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool {
		return results[i].ServerName < results[j].ServerName
	})

	return mergeResults(results, pol), nil
}

func normalizeMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case constants.ModeNative:
		return constants.ModeNative
	case constants.ModeReconstructed:
		return constants.ModeReconstructed
	default:
		return constants.ModeAuto
	}
}

func emptyResult(serverNotFound bool) *models.AggregationResult {
	return &models.AggregationResult{
		Links:          []string{},
		SourceMode:     models.SourceNone,
		ServerNotFound: serverNotFound,
		PerServer:      []models.PerServerResult{},
		Warnings:       []models.Warning{},
		Skipped:        []models.SkippedEntry{},
	}
}

// mergeResults folds the per-server results into the final aggregation
// output: set-based link dedup in insertion order, summed counters, and
// status derivation.
func mergeResults(results []models.PerServerResult, pol models.AccessPolicy) *models.AggregationResult {
	agg := &models.AggregationResult{
		Links:     []string{},
		PerServer: results,
		Warnings:  []models.Warning{},
		Skipped:   []models.SkippedEntry{},
	}

	seen := make(map[string]bool)
	for _, r := range results {
		agg.MatchedClientsRaw += r.MatchedClientsRaw
		agg.MatchedClientsActive += r.MatchedClientsActive
		agg.FilteredExpired += r.FilteredExpired
		agg.FilteredDisabled += r.FilteredDisabled
		agg.FilteredByPolicy += r.FilteredByPolicy
		agg.NativeLinks += r.NativeLinks
		agg.ReconstructedLinks += r.ReconstructedLinks
		agg.Warnings = append(agg.Warnings, r.Warnings...)
		agg.Skipped = append(agg.Skipped, r.Skipped...)

		for _, link := range r.Links {
			if seen[link] {
				continue
			}
			seen[link] = true
			agg.Links = append(agg.Links, link)
		}
	}

	agg.Total = len(agg.Links)
	agg.SourceMode = deriveSourceMode(agg.NativeLinks, agg.ReconstructedLinks)
	agg.SubscriptionActive = agg.Total > 0
	if !agg.SubscriptionActive {
		agg.InactiveReason = deriveInactiveReason(agg, pol.IsRestrictive())
	}

	return agg
}
