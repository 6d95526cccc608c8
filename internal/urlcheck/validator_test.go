package urlcheck

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_AcceptsPublicHTTPS(t *testing.T) {
	for _, u := range []string{
		"https://example.com",
		"http://example.com/landing?offer=42",
		"https://sub.shop.example.co.uk/path",
		"http://8.8.8.8/probe",
	} {
		assert.NoError(t, Validate(u), u)
	}
}

func TestValidate_RejectsMetadataAndPrivate(t *testing.T) {
	tests := []struct {
		url    string
		reason string
	}{
		{"http://169.254.169.254/latest/meta-data", ReasonLinkLocal},
		{"http://192.168.1.1", ReasonPrivateRange},
		{"http://10.0.0.5/admin", ReasonPrivateRange},
		{"http://172.16.0.1", ReasonPrivateRange},
		{"http://127.0.0.1:8080", ReasonLoopback},
		{"http://localhost/x", ReasonLoopback},
		{"http://foo.localhost", ReasonLoopback},
		{"http://[::1]/", ReasonLoopback},
		{"http://0.0.0.0/", ReasonUnspecified},
	}
	for _, tt := range tests {
		err := Validate(tt.url)
		require.Error(t, err, tt.url)
		var ve *ValidationError
		require.True(t, errors.As(err, &ve), tt.url)
		assert.Equal(t, tt.reason, ve.Reason, tt.url)
	}
}

func TestValidate_RejectsNonHTTPSchemes(t *testing.T) {
	for _, u := range []string{
		"ftp://example.com",
		"file:///etc/passwd",
		"gopher://example.com",
		"//example.com/scheme-relative",
		"javascript:alert(1)",
	} {
		err := Validate(u)
		require.Error(t, err, u)
		var ve *ValidationError
		require.True(t, errors.As(err, &ve), u)
		assert.Equal(t, ReasonScheme, ve.Reason, u)
	}
}

func TestValidate_RejectsEmpty(t *testing.T) {
	for _, u := range []string{"", "   "} {
		err := Validate(u)
		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, ReasonEmpty, ve.Reason)
	}
}

func TestCheck_Shape(t *testing.T) {
	assert.Equal(t, Result{Valid: true}, Check("https://example.com"))
	assert.Equal(t, Result{Valid: false, Reason: ReasonPrivateRange}, Check("http://192.168.1.1"))
}

func TestRegistrableDomain(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://sub.shop.example.co.uk/p", "example.co.uk"},
		{"https://example.com/x", "example.com"},
		{"https://www.example.com", "example.com"},
	}
	for _, tt := range tests {
		got, err := RegistrableDomain(tt.url)
		require.NoError(t, err, tt.url)
		assert.Equal(t, tt.want, got, tt.url)
	}
}

func TestRegistrableDomain_IPFallsBackToHost(t *testing.T) {
	got, err := RegistrableDomain("http://8.8.8.8/x")
	require.NoError(t, err)
	assert.Equal(t, "8.8.8.8", got)
}
