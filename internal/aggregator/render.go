package aggregator

import (
	"encoding/base64"
	"strings"
)

// RenderRaw joins the link set into the line-delimited text form
// consumed by subscription clients.
func RenderRaw(links []string) string {
	return strings.Join(links, "\n")
}

// RenderEncoded renders the base64-of-UTF-8 form of the link set.
func RenderEncoded(links []string) string {
	return base64.StdEncoding.EncodeToString([]byte(RenderRaw(links)))
}
