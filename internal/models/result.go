package models

// SourceMode describes where the final link set came from.
type SourceMode string

const (
	SourceNone          SourceMode = "none"
	SourceNative        SourceMode = "native"
	SourceReconstructed SourceMode = "reconstructed"
	SourceMixed         SourceMode = "mixed"
)

// InactiveReason explains why a subscriber ended up with zero links.
type InactiveReason string

const (
	ReasonBlockedByPolicy      InactiveReason = "blocked-by-policy"
	ReasonUserNotFound         InactiveReason = "user-not-found"
	ReasonAllExpiredOrDisabled InactiveReason = "all-expired-or-disabled"
	ReasonNoLinksFound         InactiveReason = "no-links-found"
)

// Warning kinds recorded during aggregation.
const (
	WarnNativeEmpty         = "native-empty"
	WarnNativeError         = "native-error"
	WarnServerFetchError    = "server-fetch-error"
	WarnUnsupportedProtocol = "reconstructed-unsupported-protocol"
)

// Warning is a non-fatal condition raised by one server's collection.
type Warning struct {
	Server string `json:"server"`
	Kind   string `json:"kind"`
	Detail string `json:"detail,omitempty"`
}

// SkippedEntry records a client whose link could not be built.
type SkippedEntry struct {
	Server    string `json:"server"`
	InboundID int    `json:"inboundId"`
	Protocol  string `json:"protocol"`
	Identity  string `json:"identity"`
	Reason    string `json:"reason"`
}

// PerServerResult is the immutable outcome of collecting one panel.
// Each panel task produces its own instance; the orchestrator merges
// them after all tasks settle.
type PerServerResult struct {
	ServerID             string         `json:"serverId"`
	ServerName           string         `json:"serverName"`
	MatchedClientsRaw    int            `json:"matchedClientsRaw"`
	MatchedClientsActive int            `json:"matchedClientsActive"`
	FilteredExpired      int            `json:"filteredExpired"`
	FilteredDisabled     int            `json:"filteredDisabled"`
	FilteredByPolicy     int            `json:"filteredByPolicy"`
	NativeLinks          int            `json:"nativeLinks"`
	ReconstructedLinks   int            `json:"reconstructedLinks"`
	Links                []string       `json:"-"`
	Warnings             []Warning      `json:"warnings,omitempty"`
	Skipped              []SkippedEntry `json:"skipped,omitempty"`
}

// AggregationResult is the merged output of one aggregation call. It is
// recomputed on every request and never persisted.
type AggregationResult struct {
	Links                []string          `json:"links"`
	Total                int               `json:"total"`
	SourceMode           SourceMode        `json:"sourceMode"`
	MatchedClientsRaw    int               `json:"matchedClientsRaw"`
	MatchedClientsActive int               `json:"matchedClientsActive"`
	FilteredExpired      int               `json:"filteredExpired"`
	FilteredDisabled     int               `json:"filteredDisabled"`
	FilteredByPolicy     int               `json:"filteredByPolicy"`
	NativeLinks          int               `json:"nativeLinks"`
	ReconstructedLinks   int               `json:"reconstructedLinks"`
	SubscriptionActive   bool              `json:"subscriptionActive"`
	InactiveReason       InactiveReason    `json:"inactiveReason,omitempty"`
	ServerNotFound       bool              `json:"serverNotFound,omitempty"`
	PerServer            []PerServerResult `json:"perServer"`
	Warnings             []Warning         `json:"warnings"`
	Skipped              []SkippedEntry    `json:"skipped"`
}

// Server identifies one registered panel.
type Server struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}
