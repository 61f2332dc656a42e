package links

import (
	"encoding/base64"
	"fmt"
	"net"
	"net/url"
	"strconv"
)

// buildShadowsocks emits ss://<base64(method:password)>@<host>:<port>#<tag>.
// Method and password fully determine the cipher, so no transport or
// security query parameters are carried.
func buildShadowsocks(e Entry) (string, string) {
	method := e.SSMethod
	password := firstNonEmpty(e.Client.Password, e.SSPassword)
	if method == "" || password == "" {
		return "", ReasonMissingSSParams
	}

	userInfo := base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%s:%s", method, password)))
	hostPort := net.JoinHostPort(e.Host, strconv.Itoa(e.Inbound.Port))
	return fmt.Sprintf("ss://%s@%s#%s", userInfo, hostPort, url.QueryEscape(tag(e))), ""
}
