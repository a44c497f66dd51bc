package restyutil

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatHeaders(t *testing.T) {
	headers := http.Header{}
	headers.Set("User-Agent", "hrpull")
	headers.Add("Cookie", "_hr_session=abc")
	headers.Set("Accept", "application/pdf")
	headers.Set("Authorization", "Bearer secret")

	require.Equal(t,
		"Accept: application/pdf\nAuthorization: <redacted>\nCookie: <redacted>\nUser-Agent: hrpull",
		formatHeaders(headers),
	)
	require.Equal(t, "", formatHeaders(http.Header{}))
}
