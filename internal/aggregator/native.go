package aggregator

import (
	"context"
	"encoding/base64"
	"strings"

	"xui-sub-hub/internal/constants"
	"xui-sub-hub/internal/models"

	"xui-sub-hub/pkg/panelclient"
)

// DecodeSubscriptionPayload extracts connection URIs from an opaque
// native subscription payload. It first looks for raw scheme-prefixed
// lines; failing that it treats the payload as base64 (URL-safe
// alphabet normalized, padded) and retries on the decoded text. An
// empty slice means neither branch produced a usable line.
func DecodeSubscriptionPayload(payload string) []string {
	if lines := schemeLines(payload); len(lines) > 0 {
		return lines
	}

	decoded, err := decodeBase64Loose(payload)
	if err != nil {
		return nil
	}
	return schemeLines(string(decoded))
}

// schemeLines splits the text on line breaks and keeps lines matching
// the URI-scheme allow-list.
func schemeLines(text string) []string {
	var out []string
	for _, line := range strings.FieldsFunc(text, func(r rune) bool {
		return r == '\n' || r == '\r'
	}) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, scheme := range constants.SchemeAllowList {
			if strings.HasPrefix(line, scheme) {
				out = append(out, line)
				break
			}
		}
	}
	return out
}

// decodeBase64Loose decodes base64 text that may use the URL-safe
// alphabet, contain internal whitespace, or lack padding.
func decodeBase64Loose(value string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		case '-':
			return '+'
		case '_':
			return '/'
		default:
			return r
		}
	}, value)

	switch len(cleaned) % 4 {
	case 2:
		cleaned += "=="
	case 3:
		cleaned += "="
	}

	return base64.StdEncoding.DecodeString(cleaned)
}

// fetchNativeLinks issues one subscription request per distinct subId
// and merges the decoded links into the per-server result. Failures are
// recorded as warnings scoped to the failing subId; the remaining ids
// are still processed. Fetches within one panel run sequentially.
func (o *Orchestrator) fetchNativeLinks(ctx context.Context, session panelclient.Session, res *models.PerServerResult, subIDs []string) {
	for _, subID := range subIDs {
		text, err := session.FetchSubscription(ctx, subID)
		if err != nil {
			o.logger.Warnf("Native subscription fetch failed on %s for subId %s: %v", res.ServerName, subID, err)
			res.Warnings = append(res.Warnings, models.Warning{
				Server: res.ServerName,
				Kind:   models.WarnNativeError,
				Detail: "subId " + subID + ": " + err.Error(),
			})
			continue
		}

		lines := DecodeSubscriptionPayload(text)
		if len(lines) == 0 {
			res.Warnings = append(res.Warnings, models.Warning{
				Server: res.ServerName,
				Kind:   models.WarnNativeEmpty,
				Detail: "subId " + subID,
			})
			continue
		}

		res.Links = append(res.Links, lines...)
		res.NativeLinks += len(lines)
	}
}
