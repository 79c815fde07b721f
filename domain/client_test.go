package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingVisitor struct {
	visited string
}

func (v *recordingVisitor) VisitNativeClient(*Client) error {
	v.visited = "native"
	return nil
}

func (v *recordingVisitor) VisitAndroidClient(*Client) error {
	v.visited = "android"
	return nil
}

func (v *recordingVisitor) VisitRecaptchaClient(*Client) error {
	v.visited = "recaptcha"
	return nil
}

func TestClientAccept(t *testing.T) {
	tests := []struct {
		kind    ClientKind
		visited string
	}{
		{ClientKindNative, "native"},
		{ClientKindAndroid, "android"},
		{ClientKindRecaptcha, "recaptcha"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			visitor := &recordingVisitor{}
			client := &Client{Kind: tt.kind}

			require.NoError(t, client.Accept(visitor))
			assert.Equal(t, tt.visited, visitor.visited)
		})
	}
}

func TestClientAccept_UnknownKind(t *testing.T) {
	client := &Client{Kind: ClientKind("ios")}

	err := client.Accept(&recordingVisitor{})
	require.ErrorIs(t, err, ErrUnknownClientKind)
	assert.Contains(t, err.Error(), "ios")
}

func TestMatchOrigin(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		origin  string
		match   bool
	}{
		{"no pattern accepts everything", "", "https://anything.test", true},
		{"exact match", "https://app.example.com", "https://app.example.com", true},
		{"exact mismatch", "https://app.example.com", "https://evil.test", false},
		{"wildcard subdomain", "https://*.example.com", "https://staging.example.com", true},
		{"wildcard rejects foreign host", "https://*.example.com", "https://example.org", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &Client{Origin: tt.pattern}

			match, err := client.MatchOrigin(tt.origin)
			require.NoError(t, err)
			assert.Equal(t, tt.match, match)
		})
	}
}

func TestMatchOrigin_InvalidPattern(t *testing.T) {
	client := &Client{Origin: "https://[.example.com"}

	_, err := client.MatchOrigin("https://app.example.com")
	require.Error(t, err)
}

func TestGenerateClientSecret(t *testing.T) {
	first := GenerateClientSecret()
	second := GenerateClientSecret()

	assert.Len(t, first, 48)
	assert.NotEqual(t, first, second)
	for _, r := range first {
		assert.True(t, (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			"secret must stay within the url-safe charset")
	}
}
