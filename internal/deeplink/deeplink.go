// Package deeplink builds the wallet deep links used during a verification
// attempt. The wallet needs a returnUrl query parameter to hand control back
// to the app once the proof has been presented.
package deeplink

import (
	"fmt"
	"net/url"
	"strings"
)

const returnURLParam = "returnurl="

// WithReturnURL appends returnURL as a query parameter to the wallet deep
// link. It is idempotent: a link that already carries a returnUrl parameter is
// returned untouched, byte for byte, since the link is only valid for the
// thread it was issued with.
func WithReturnURL(link, returnURL string) string {
	if link == "" || returnURL == "" {
		return link
	}
	if HasReturnURL(link) {
		return link
	}

	join := "?"
	if strings.Contains(link, "?") {
		join = "&"
	}
	return fmt.Sprintf("%s%sreturnUrl=%s", link, join, url.QueryEscape(returnURL))
}

// HasReturnURL tells whether the deep link already carries a returnUrl
// parameter, whatever its casing.
func HasReturnURL(link string) bool {
	return strings.Contains(strings.ToLower(link), returnURLParam)
}
