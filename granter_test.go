package gatekeeper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.pilab.hu/gatekeeper/domain"
	gkerrors "go.pilab.hu/gatekeeper/errors"
)

func TestSchemaValidate_AggregatesAllFailures(t *testing.T) {
	schema := Schema{
		"client_secret": {},
		"package":       {Message: "The package name is required."},
	}

	err := schema.Validate(&Request{Body: map[string]string{}})

	var validationErr *gkerrors.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, map[string]string{
		"client_secret": "This field is required.",
		"package":       "The package name is required.",
	}, validationErr.Fields)
}

func TestSchemaValidate_MinLength(t *testing.T) {
	schema := Schema{"password": {MinLength: 8, Message: "The password is too short."}}

	err := schema.Validate(&Request{Body: map[string]string{"password": "short"}})

	var validationErr *gkerrors.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.True(t, validationErr.Has("password"))

	assert.NoError(t, schema.Validate(&Request{Body: map[string]string{"password": "long enough"}}))
}

func TestSchemaValidate_PassesOnCompleteBody(t *testing.T) {
	schema := Schema{"client_secret": {}}

	err := schema.Validate(&Request{Body: map[string]string{"client_secret": "s1"}})
	assert.NoError(t, err)
}

func TestSchemaMerge(t *testing.T) {
	base := Schema{
		"client_secret": {},
		"password":      {MinLength: 1},
	}
	override := Schema{
		"password": {MinLength: 8},
		"package":  {},
	}

	merged := base.Merge(override)

	assert.Len(t, merged, 3)
	assert.Equal(t, 8, merged["password"].MinLength, "argument rules win on collision")
	assert.Contains(t, merged, "client_secret")
	assert.Contains(t, merged, "package")

	// Merge must not mutate either input.
	assert.Equal(t, 1, base["password"].MinLength)
}

func TestRequestField(t *testing.T) {
	req := &Request{Body: map[string]string{"username": "jane"}}

	assert.Equal(t, "jane", req.Field("username"))
	assert.Empty(t, req.Field("missing"))
	assert.Empty(t, (&Request{}).Field("username"))
}

func TestSchemaFor_PerClientKind(t *testing.T) {
	granter := NewClientCredentialsGranter(nil)

	tests := []struct {
		kind   domain.ClientKind
		fields []string
	}{
		{domain.ClientKindNative, []string{"client_secret"}},
		{domain.ClientKindAndroid, []string{"client_secret", "package"}},
		{domain.ClientKindRecaptcha, []string{"recaptcha"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			schema, err := granter.SchemaFor(&domain.Client{Kind: tt.kind})
			require.NoError(t, err)

			names := make([]string, 0, len(schema))
			for name := range schema {
				names = append(names, name)
			}
			assert.ElementsMatch(t, tt.fields, names)
		})
	}
}

func TestSchemaFor_UnknownKind(t *testing.T) {
	granter := NewClientCredentialsGranter(nil)

	_, err := granter.SchemaFor(&domain.Client{Kind: domain.ClientKind("ios")})
	require.ErrorIs(t, err, domain.ErrUnknownClientKind)
}
