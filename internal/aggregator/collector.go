package aggregator

import (
	"context"
	"fmt"
	"time"

	"xui-sub-hub/internal/constants"
	"xui-sub-hub/internal/links"
	"xui-sub-hub/internal/models"
	"xui-sub-hub/internal/policy"
)

// collectServer runs one panel's share of the aggregation: list
// inbounds, match clients by identity, apply the filter chain, decide
// native-vs-reconstructed sourcing and produce an immutable per-server
// result. Hard panel failures become warnings, never errors.
func (o *Orchestrator) collectServer(ctx context.Context, server models.Server, identity string, pol models.AccessPolicy, mode string) models.PerServerResult {
	res := models.PerServerResult{ServerID: server.ID, ServerName: server.Name}

	if d := policy.FilterServer(pol, server.ID); !d.Allowed {
		o.logger.Debugf("Server %s filtered by policy for %s (%s)", server.Name, identity, d.Reason)
		res.FilteredByPolicy = 1
		return res
	}

	session, err := o.provider.Authenticate(ctx, server.ID)
	if err != nil {
		o.logger.Errorf("Failed to authenticate against %s: %v", server.Name, err)
		res.Warnings = append(res.Warnings, models.Warning{
			Server: server.Name,
			Kind:   models.WarnServerFetchError,
			Detail: err.Error(),
		})
		return res
	}

	inbounds, err := session.ListInbounds(ctx)
	if err != nil {
		o.logger.Errorf("Failed to list inbounds on %s: %v", server.Name, err)
		res.Warnings = append(res.Warnings, models.Warning{
			Server: server.Name,
			Kind:   models.WarnServerFetchError,
			Detail: err.Error(),
		})
		return res
	}

	now := time.Now()
	host := session.ConnectHost()

	type retainedEntry struct {
		entry        links.Entry
		transportErr error
	}
	var retained []retainedEntry
	var subIDs []string
	seenSubIDs := make(map[string]bool)

	for _, inbound := range inbounds {
		settings, err := inbound.ParseSettings()
		if err != nil {
			o.logger.Warnf("Skipping inbound %d on %s: %v", inbound.ID, server.Name, err)
			continue
		}

		transport, transportErr := models.ParseTransport(inbound.StreamSettings)

		for _, client := range settings.Clients {
			if !client.MatchesIdentity(identity) {
				continue
			}
			res.MatchedClientsRaw++

			if !client.Enable {
				res.FilteredDisabled++
				continue
			}
			if client.IsExpired(now) {
				res.FilteredExpired++
				continue
			}
			if d := policy.FilterProtocol(pol, inbound.Protocol); !d.Allowed {
				res.FilteredByPolicy++
				continue
			}

			res.MatchedClientsActive++

			if client.SubID != "" && !seenSubIDs[client.SubID] {
				seenSubIDs[client.SubID] = true
				subIDs = append(subIDs, client.SubID)
			}

			retained = append(retained, retainedEntry{
				entry: links.Entry{
					ServerName: server.Name,
					Host:       host,
					Inbound:    inbound,
					Transport:  transport,
					Client:     client,
					SSMethod:   settings.Method,
					SSPassword: settings.Password,
				},
				transportErr: transportErr,
			})
		}
	}

	if (mode == constants.ModeAuto || mode == constants.ModeNative) && len(subIDs) > 0 {
		o.fetchNativeLinks(ctx, session, &res, subIDs)
	}

	reconstruct := mode == constants.ModeReconstructed ||
		(mode == constants.ModeAuto && res.NativeLinks == 0)
	if !reconstruct {
		return res
	}

	for _, r := range retained {
		e := r.entry
		if !links.Supported(e.Inbound.Protocol) {
			res.Warnings = append(res.Warnings, models.Warning{
				Server: server.Name,
				Kind:   models.WarnUnsupportedProtocol,
				Detail: fmt.Sprintf("inbound %d protocol %s", e.Inbound.ID, e.Inbound.Protocol),
			})
			continue
		}
		if r.transportErr != nil {
			res.Skipped = append(res.Skipped, models.SkippedEntry{
				Server:    server.Name,
				InboundID: e.Inbound.ID,
				Protocol:  e.Inbound.Protocol,
				Identity:  e.Client.Email,
				Reason:    r.transportErr.Error(),
			})
			continue
		}

		uri, reason := links.Build(e)
		if reason != "" {
			res.Skipped = append(res.Skipped, models.SkippedEntry{
				Server:    server.Name,
				InboundID: e.Inbound.ID,
				Protocol:  e.Inbound.Protocol,
				Identity:  e.Client.Email,
				Reason:    reason,
			})
			continue
		}

		res.Links = append(res.Links, uri)
		res.ReconstructedLinks++
	}

	return res
}
