package constants

const (
	// Network constants
	DefaultTimeout          = 30
	DefaultRetryCount       = 3
	DefaultRetryWaitTime    = 5
	DefaultRetryMaxWaitTime = 20

	// Session cache constants
	SessionCacheExpiration      = 30 // minutes
	SessionCacheCleanupInterval = 10 // minutes

	// Link building constants
	DefaultVlessEncryption = "none"
	DefaultVisionFlow      = "xtls-rprx-vision"
	DefaultSpiderX         = "/"
	VmessVersion           = "2"

	// Aggregation modes
	ModeAuto          = "auto"
	ModeNative        = "native"
	ModeReconstructed = "reconstructed"

	// Subscription rendering
	FormatRaw     = "raw"
	FormatEncoded = "encoded"
	FormatJSON    = "json"
)

// SchemeAllowList holds the URI schemes accepted from native
// subscription payloads.
var SchemeAllowList = []string{
	"vmess://",
	"vless://",
	"trojan://",
	"ss://",
	"hy2://",
	"hysteria2://",
	"tuic://",
	"socks://",
	"http://",
}
