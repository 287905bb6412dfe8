package deeplink

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithReturnURL(t *testing.T) {
	for _, tc := range []struct {
		name      string
		link      string
		returnURL string
		expected  string
	}{
		{
			name:      "link without query string",
			link:      "https://bhutanndi.app.link/proof",
			returnURL: "ngayoe://",
			expected:  "https://bhutanndi.app.link/proof?returnUrl=ngayoe%3A%2F%2F",
		},
		{
			name:      "link with query string",
			link:      "https://bhutanndi.app.link/proof?tid=abc",
			returnURL: "ngayoe://",
			expected:  "https://bhutanndi.app.link/proof?tid=abc&returnUrl=ngayoe%3A%2F%2F",
		},
		{
			name:      "already has returnUrl, byte identical",
			link:      "https://bhutanndi.app.link/proof?returnUrl=ngayoe%3A%2F%2F",
			returnURL: "ngayoe://",
			expected:  "https://bhutanndi.app.link/proof?returnUrl=ngayoe%3A%2F%2F",
		},
		{
			name:      "already has returnUrl with different casing",
			link:      "https://bhutanndi.app.link/proof?ReturnURL=ngayoe%3A%2F%2F",
			returnURL: "ngayoe://",
			expected:  "https://bhutanndi.app.link/proof?ReturnURL=ngayoe%3A%2F%2F",
		},
		{
			name:      "empty link",
			link:      "",
			returnURL: "ngayoe://",
			expected:  "",
		},
		{
			name:      "empty return url",
			link:      "https://bhutanndi.app.link/proof",
			returnURL: "",
			expected:  "https://bhutanndi.app.link/proof",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, WithReturnURL(tc.link, tc.returnURL))
		})
	}
}

func TestWithReturnURLIdempotent(t *testing.T) {
	link := "https://bhutanndi.app.link/proof"
	once := WithReturnURL(link, "ngayoe://")
	twice := WithReturnURL(once, "ngayoe://")
	assert.Equal(t, once, twice)
}
