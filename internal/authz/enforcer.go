// Package authz decides which authenticated identities may perform admin actions.
// Decisions are made by a Casbin RBAC enforcer; configured admin identities are
// granted the "admin" role.
package authz

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	"github.com/navikt/benchroom/internal/config"
	"github.com/navikt/benchroom/internal/logging"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// AdminRole is granted to every configured admin identity
const AdminRole = "admin"

// Objects guarded by the enforcer
const (
	ObjectRoom     = "room"
	ObjectCheckIns = "checkins"
	ObjectSupport  = "support"
)

// Actions checked against the objects
const (
	ActionRead     = "read"
	ActionUpdate   = "update"
	ActionCheckout = "checkout"
	ActionEnd      = "end"
)

// Authorizer is the decision point used by the HTTP layer
type Authorizer interface {
	Enforce(subject, object, action string) (bool, error)
}

// Enforcer wraps a synced Casbin enforcer
type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer builds the enforcer from the embedded model and either the
// policy file at cfg.PolicyPath or the embedded policy
func NewEnforcer(cfg config.AuthConfig) (*Enforcer, error) {
	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	if cfg.PolicyPath != "" && fileExists(cfg.PolicyPath) {
		enforcer, err = casbin.NewSyncedEnforcer(m, fileadapter.NewAdapter(cfg.PolicyPath))
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err == nil {
			err = loadEmbeddedPolicy(enforcer, embeddedPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	e := &Enforcer{enforcer: enforcer}
	for _, ident := range cfg.AdminIdents {
		if err := e.GrantAdmin(ident); err != nil {
			return nil, err
		}
	}

	if len(cfg.AdminIdents) == 0 {
		logging.Warn().Msg("No admin identities configured - admin actions will be denied")
	}

	return e, nil
}

// loadEmbeddedPolicy parses the embedded policy CSV
func loadEmbeddedPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		switch parts[0] {
		case "p":
			if len(parts) >= 4 {
				if _, err := enforcer.AddPolicy(parts[1], parts[2], parts[3]); err != nil {
					return fmt.Errorf("failed to add policy %v: %w", parts[1:], err)
				}
			}
		case "g":
			if len(parts) >= 3 {
				if _, err := enforcer.AddGroupingPolicy(parts[1], parts[2]); err != nil {
					return fmt.Errorf("failed to add grouping policy %v: %w", parts[1:], err)
				}
			}
		}
	}
	return nil
}

// GrantAdmin assigns the admin role to an identity
func (e *Enforcer) GrantAdmin(ident string) error {
	ident = strings.TrimSpace(ident)
	if ident == "" {
		return nil
	}
	if _, err := e.enforcer.AddGroupingPolicy(ident, AdminRole); err != nil {
		return fmt.Errorf("failed to grant admin role: %w", err)
	}
	return nil
}

// Enforce checks if subject may perform action on object.
// An empty subject is always denied.
func (e *Enforcer) Enforce(subject, object, action string) (bool, error) {
	if subject == "" {
		return false, nil
	}
	allowed, err := e.enforcer.Enforce(subject, object, action)
	if err != nil {
		return false, fmt.Errorf("enforcement failed: %w", err)
	}
	return allowed, nil
}

// Admins returns the identities holding the admin role
func (e *Enforcer) Admins() []string {
	users, err := e.enforcer.GetUsersForRole(AdminRole)
	if err != nil {
		return nil
	}
	return users
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
