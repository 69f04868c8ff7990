package jwt_test

import (
	"encoding/json"
	"testing"
	"time"

	"delivery-track/internal/domain/user"
	"delivery-track/internal/general/jwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidate_RoundTrip(t *testing.T) {
	mgr := jwt.NewManager("test-secret", time.Hour)

	token, claims, err := mgr.IssueUserToken("driver-1", user.RoleDriver)
	require.NoError(t, err)
	assert.Equal(t, "driver-1", claims.Subject)

	_, parsed, err := mgr.ParseAndValidate(token)
	require.NoError(t, err)
	assert.Equal(t, "driver-1", parsed.Subject)
	assert.Equal(t, user.RoleDriver, parsed.Role)
}

func TestParseAndValidate_WrongSecret(t *testing.T) {
	mgr := jwt.NewManager("test-secret", time.Hour)
	other := jwt.NewManager("different-secret", time.Hour)

	token, _, err := mgr.IssueUserToken("driver-1", user.RoleDriver)
	require.NoError(t, err)

	_, _, err = other.ParseAndValidate(token)
	assert.Error(t, err)
}

func TestParseAndValidate_Expired(t *testing.T) {
	mgr := jwt.NewManager("test-secret", -time.Minute)

	token, _, err := mgr.IssueUserToken("driver-1", user.RoleDriver)
	require.NoError(t, err)

	_, _, err = mgr.ParseAndValidate(token)
	assert.Error(t, err)
}

func TestIssueUserToken_RejectsUnknownRole(t *testing.T) {
	mgr := jwt.NewManager("test-secret", time.Hour)
	_, _, err := mgr.IssueUserToken("someone", user.Role("COURIER"))
	assert.Error(t, err)
}

func TestRoleAllowed(t *testing.T) {
	mgr := jwt.NewManager("test-secret", time.Hour)
	_, claims, err := mgr.IssueUserToken("r-1", user.RoleReceiver)
	require.NoError(t, err)

	assert.NoError(t, jwt.RoleAllowed(claims, user.RoleDriver, user.RoleReceiver))
	assert.ErrorIs(t, jwt.RoleAllowed(claims, user.RoleDriver), jwt.ErrRoleForbidden)
}

func TestValidateWSAuth(t *testing.T) {
	mgr := jwt.NewManager("test-secret", time.Hour)
	token, _, err := mgr.IssueUserToken("driver-1", user.RoleDriver)
	require.NoError(t, err)

	frame, err := json.Marshal(jwt.ClientAuthMessage{Type: "auth", Token: "Bearer " + token})
	require.NoError(t, err)

	res, err := jwt.ValidateWSAuth(frame, mgr, user.RoleDriver, user.RoleReceiver)
	require.NoError(t, err)
	assert.Equal(t, "driver-1", res.Claims.Subject)
}

func TestValidateWSAuth_Rejections(t *testing.T) {
	mgr := jwt.NewManager("test-secret", time.Hour)
	token, _, err := mgr.IssueUserToken("driver-1", user.RoleDriver)
	require.NoError(t, err)

	tests := []struct {
		name  string
		frame string
	}{
		{"not_json", `hello`},
		{"wrong_type", `{"type":"join_delivery","token":"Bearer x"}`},
		{"missing_bearer", `{"type":"auth","token":"` + token + `"}`},
		{"garbage_token", `{"type":"auth","token":"Bearer garbage"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := jwt.ValidateWSAuth([]byte(tt.frame), mgr, user.RoleDriver)
			assert.Error(t, err)
		})
	}

	// valid token, role not allowed on this endpoint
	frame, _ := json.Marshal(jwt.ClientAuthMessage{Type: "auth", Token: "Bearer " + token})
	_, err = jwt.ValidateWSAuth(frame, mgr, user.RoleAdmin)
	assert.ErrorIs(t, err, jwt.ErrRoleForbidden)
}
