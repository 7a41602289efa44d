package authz_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/navikt/benchroom/internal/authz"
	"github.com/navikt/benchroom/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnforcerEmbeddedPolicy(t *testing.T) {
	e, err := authz.NewEnforcer(config.AuthConfig{AdminIdents: []string{"A123456", " B654321 "}})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"A123456", "B654321"}, e.Admins())

	tests := []struct {
		name    string
		subject string
		object  string
		action  string
		allowed bool
	}{
		{"AdminCheckout", "A123456", authz.ObjectCheckIns, authz.ActionCheckout, true},
		{"AdminUpdateRoom", "B654321", authz.ObjectRoom, authz.ActionUpdate, true},
		{"AdminReadSupport", "A123456", authz.ObjectSupport, authz.ActionRead, true},
		{"UnknownUser", "Z999999", authz.ObjectCheckIns, authz.ActionCheckout, false},
		{"EmptySubject", "", authz.ObjectCheckIns, authz.ActionCheckout, false},
		{"UnknownAction", "A123456", authz.ObjectCheckIns, "delete", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allowed, err := e.Enforce(tt.subject, tt.object, tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.allowed, allowed)
		})
	}
}

func TestEnforcerWithoutAdmins(t *testing.T) {
	e, err := authz.NewEnforcer(config.AuthConfig{})
	require.NoError(t, err)

	allowed, err := e.Enforce("A123456", authz.ObjectRoom, authz.ActionRead)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestEnforcerPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.csv")
	policy := "p, admin, room, read\np, auditor, checkins, read\ng, C111111, auditor\n"
	require.NoError(t, os.WriteFile(path, []byte(policy), 0o600))

	e, err := authz.NewEnforcer(config.AuthConfig{PolicyPath: path, AdminIdents: []string{"A123456"}})
	require.NoError(t, err)

	allowed, err := e.Enforce("C111111", authz.ObjectCheckIns, authz.ActionRead)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = e.Enforce("A123456", authz.ObjectCheckIns, authz.ActionCheckout)
	require.NoError(t, err)
	assert.False(t, allowed, "Policy file replaces the embedded policy")

	allowed, err = e.Enforce("A123456", authz.ObjectRoom, authz.ActionRead)
	require.NoError(t, err)
	assert.True(t, allowed)
}
