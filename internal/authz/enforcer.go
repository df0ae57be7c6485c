// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

package authz

import (
	_ "embed"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Actions used in policy rules.
const (
	ActionRead   = "read"
	ActionWrite  = "write"
	ActionDelete = "delete"
)

// Roles known to the embedded policy, lowest privilege first.
var Roles = []string{"viewer", "editor", "admin"}

// Config holds enforcer settings.
type Config struct {
	// PolicyPath is a CSV policy file. The embedded policy is used when empty.
	PolicyPath string

	// DefaultRole is used for users whose role is empty or unknown.
	DefaultRole string
}

// Enforcer decides whether a role may perform an action on a request path.
type Enforcer struct {
	enforcer    *casbin.SyncedEnforcer
	defaultRole string
	roles       []string
}

// NewEnforcer loads the embedded model and the configured or embedded policy.
func NewEnforcer(cfg Config) (*Enforcer, error) {
	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	if cfg.PolicyPath != "" {
		enforcer, err = casbin.NewSyncedEnforcer(m, fileadapter.NewAdapter(cfg.PolicyPath))
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err == nil {
			err = loadPolicy(enforcer, embeddedPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	roles, err := enforcer.GetAllSubjects()
	if err != nil {
		return nil, fmt.Errorf("list policy subjects: %w", err)
	}
	if cfg.DefaultRole == "" {
		cfg.DefaultRole = Roles[0]
	}
	if !slices.Contains(roles, cfg.DefaultRole) {
		return nil, fmt.Errorf("default role %q has no policy rules", cfg.DefaultRole)
	}

	return &Enforcer{
		enforcer:    enforcer,
		defaultRole: cfg.DefaultRole,
		roles:       roles,
	}, nil
}

// loadPolicy adds the p and g lines of a CSV policy.
func loadPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		switch ptype, rule := parts[0], parts[1:]; {
		case ptype == "p" && len(rule) == 3:
			if _, err := enforcer.AddPolicy(rule[0], rule[1], rule[2]); err != nil {
				return fmt.Errorf("failed to add policy %v: %w", rule, err)
			}
		case ptype == "g" && len(rule) == 2:
			if _, err := enforcer.AddGroupingPolicy(rule[0], rule[1]); err != nil {
				return fmt.Errorf("failed to add grouping policy %v: %w", rule, err)
			}
		default:
			return fmt.Errorf("malformed policy line %q", line)
		}
	}
	return nil
}

// Role maps a user's role to a policy subject. Empty and unknown roles get
// the default role.
func (e *Enforcer) Role(role string) string {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" || !slices.Contains(e.roles, role) {
		return e.defaultRole
	}
	return role
}

// Enforce reports whether role may perform action on path.
func (e *Enforcer) Enforce(role, path, action string) (bool, error) {
	allowed, err := e.enforcer.Enforce(e.Role(role), path, action)
	if err != nil {
		return false, fmt.Errorf("enforcement failed: %w", err)
	}
	return allowed, nil
}

// MethodAction maps an HTTP method to a policy action. Method overrides are
// resolved by the caller.
func MethodAction(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return ActionRead
	case http.MethodDelete:
		return ActionDelete
	default:
		return ActionWrite
	}
}
