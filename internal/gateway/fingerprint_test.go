package gateway

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/stock-signal-fabric/internal/domain"
)

func TestFingerprintQueryOrderIndependent(t *testing.T) {
	t.Parallel()
	a, err := url.ParseQuery("b=2&a=1")
	require.NoError(t, err)
	b, err := url.ParseQuery("a=1&b=2")
	require.NoError(t, err)
	assert.Equal(t,
		Fingerprint(domain.ServiceChart, "GET", "/signal", a),
		Fingerprint(domain.ServiceChart, "GET", "/signal", b),
	)
}

func TestFingerprintDecodesValues(t *testing.T) {
	t.Parallel()
	a, err := url.ParseQuery("q=hello%20world")
	require.NoError(t, err)
	b, err := url.ParseQuery("q=hello+world")
	require.NoError(t, err)
	assert.Equal(t,
		Fingerprint(domain.ServiceNews, "GET", "/items", a),
		Fingerprint(domain.ServiceNews, "GET", "/items", b),
	)
}

func TestFingerprintDistinguishes(t *testing.T) {
	t.Parallel()
	q, _ := url.ParseQuery("a=1")
	base := Fingerprint(domain.ServiceChart, "GET", "/signal", q)
	assert.NotEqual(t, base, Fingerprint(domain.ServiceNews, "GET", "/signal", q))
	assert.NotEqual(t, base, Fingerprint(domain.ServiceChart, "POST", "/signal", q))
	assert.NotEqual(t, base, Fingerprint(domain.ServiceChart, "GET", "/health", q))
	q2, _ := url.ParseQuery("a=2")
	assert.NotEqual(t, base, Fingerprint(domain.ServiceChart, "GET", "/signal", q2))
	assert.NotEqual(t, base, Fingerprint(domain.ServiceChart, "GET", "/signal", nil))
	// 64 hex chars
	assert.Len(t, base, 64)
}
