package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/visarisk/agent/internal/models"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("not-known-to-the-agent"))
	require.NoError(t, err)
	return token
}

func TestClaimsResolver_Absent(t *testing.T) {
	resolver := NewClaimsResolver("", "", false)

	tests := []struct {
		name       string
		credential *models.Credential
	}{
		{name: "nil credential", credential: nil},
		{name: "empty access token", credential: &models.Credential{RefreshToken: "R1"}},
		{name: "whitespace access token", credential: &models.Credential{AccessToken: "   "}},
		{name: "token with embedded newline", credential: &models.Credential{AccessToken: "abc\ndef"}},
		{name: "token with non ascii", credential: &models.Credential{AccessToken: "tökén"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, resolver.Resolve(tt.credential))
		})
	}
}

func TestClaimsResolver_OpaqueToken(t *testing.T) {
	tests := []struct {
		name          string
		token         string
		rejectExpired bool
	}{
		{name: "plain handle", token: "T1"},
		{name: "dotted handle", token: "opaque.session.handle"},
		{name: "dotted handle with expiry check", token: "opaque.session.handle", rejectExpired: true},
		{name: "jwt shaped garbage", token: "not.a.jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := NewClaimsResolver("", "", tt.rejectExpired)

			identity := resolver.Resolve(&models.Credential{AccessToken: tt.token, RefreshToken: "R1"})

			require.NotNil(t, identity)
			assert.True(t, identity.Authenticated)
			assert.Equal(t, models.RoleUnknown, identity.Role)
			assert.Empty(t, identity.Email)
			assert.Nil(t, identity.ExpiresAt)
		})
	}
}

func TestClaimsResolver_Claims(t *testing.T) {
	expiry := time.Now().Add(time.Hour).Truncate(time.Second)

	tests := []struct {
		name          string
		roleClaim     string
		claims        jwt.MapClaims
		expectedRole  models.Role
		expectedEmail string
	}{
		{
			name:          "student role",
			claims:        jwt.MapClaims{"role": "student", "email": "a@x.com", "sub": "42", "exp": expiry.Unix()},
			expectedRole:  models.RoleStudent,
			expectedEmail: "a@x.com",
		},
		{
			name:         "parent role is case insensitive",
			claims:       jwt.MapClaims{"role": "Parent"},
			expectedRole: models.RoleParent,
		},
		{
			name:         "unknown role value",
			claims:       jwt.MapClaims{"role": "admin"},
			expectedRole: models.RoleUnknown,
		},
		{
			name:         "non string role",
			claims:       jwt.MapClaims{"role": 7},
			expectedRole: models.RoleUnknown,
		},
		{
			name:         "no role claim",
			claims:       jwt.MapClaims{"user_id": 1},
			expectedRole: models.RoleUnknown,
		},
		{
			name:         "custom role claim",
			roleClaim:    "user_type",
			claims:       jwt.MapClaims{"user_type": "parent", "role": "student"},
			expectedRole: models.RoleParent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := NewClaimsResolver(tt.roleClaim, "", false)

			identity := resolver.Resolve(&models.Credential{AccessToken: signedToken(t, tt.claims)})

			require.NotNil(t, identity)
			assert.True(t, identity.Authenticated)
			assert.Equal(t, tt.expectedRole, identity.Role)
			assert.Equal(t, tt.expectedEmail, identity.Email)
		})
	}
}

func TestClaimsResolver_SubjectAndExpiry(t *testing.T) {
	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	resolver := NewClaimsResolver("", "", false)

	identity := resolver.Resolve(&models.Credential{
		AccessToken: signedToken(t, jwt.MapClaims{"sub": "42", "exp": expiry.Unix()}),
	})

	require.NotNil(t, identity)
	assert.Equal(t, "42", identity.Subject)
	require.NotNil(t, identity.ExpiresAt)
	assert.True(t, identity.ExpiresAt.Equal(expiry))
}

func TestClaimsResolver_ExpiredTokens(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"role": "student", "exp": time.Now().Add(-time.Hour).Unix()})

	// The reference behaviour keeps expired tokens
	lenient := NewClaimsResolver("", "", false)
	identity := lenient.Resolve(&models.Credential{AccessToken: token})
	require.NotNil(t, identity)
	assert.Equal(t, models.RoleStudent, identity.Role)

	strict := NewClaimsResolver("", "", true)
	assert.Nil(t, strict.Resolve(&models.Credential{AccessToken: token}))
}

func TestClaimsResolver_IsPure(t *testing.T) {
	resolver := NewClaimsResolver("", "", false)
	credential := &models.Credential{AccessToken: signedToken(t, jwt.MapClaims{"role": "parent"})}

	first := resolver.Resolve(credential)
	second := resolver.Resolve(credential)

	assert.Equal(t, first, second)
	assert.NotSame(t, first, second)
}
