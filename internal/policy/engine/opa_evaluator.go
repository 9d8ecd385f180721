// Package engine evaluates capability checks with an OPA Rego policy.
package engine

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	"nexus-auth/backend/internal/authz"
	"nexus-auth/backend/internal/authz/domain"
)

const allowQuery = "data.nexus.authz.allow"

// DefaultPolicy grants a capability when it is empty, held directly, or the
// subject is super admin. Operators may replace it with a policy that defines
// the same rule.
const DefaultPolicy = `package nexus.authz

default allow := false

allow if {
	input.required == ""
}

allow if {
	input.required in input.permissions
}

allow if {
	"admin" in input.roles
}
`

// OPAChecker implements authz.CapabilityChecker over a compiled Rego policy.
type OPAChecker struct {
	query rego.PreparedEvalQuery
}

var _ authz.CapabilityChecker = (*OPAChecker)(nil)

// NewOPAChecker compiles policy (DefaultPolicy when empty) and prepares the allow query.
func NewOPAChecker(ctx context.Context, policy string) (*OPAChecker, error) {
	if policy == "" {
		policy = DefaultPolicy
	}
	compiler, err := ast.CompileModules(map[string]string{"authz.rego": policy})
	if err != nil {
		return nil, fmt.Errorf("compile policy: %w", err)
	}
	pq, err := rego.New(
		rego.Query(allowQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare policy: %w", err)
	}
	return &OPAChecker{query: pq}, nil
}

// Allowed evaluates the policy for a and capability. Undefined results deny.
func (c *OPAChecker) Allowed(ctx context.Context, a *authz.Authorization, capability string) (bool, error) {
	rs, err := c.query.Eval(ctx, rego.EvalInput(buildInput(a, capability)))
	if err != nil {
		return false, fmt.Errorf("eval policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	return ok && allowed, nil
}

// HealthCheck evaluates a super-admin probe; it fails if the policy no longer grants it.
func (c *OPAChecker) HealthCheck(ctx context.Context) error {
	probe := &authz.Authorization{
		Roles:       map[string]struct{}{domain.RoleSuperAdmin: {}},
		Permissions: map[string]struct{}{},
	}
	ok, err := c.Allowed(ctx, probe, "health:probe")
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("policy denies super admin")
	}
	return nil
}

func buildInput(a *authz.Authorization, capability string) map[string]interface{} {
	roles := []string{}
	perms := []string{}
	if a != nil {
		roles = a.RoleList()
		perms = a.PermissionList()
	}
	return map[string]interface{}{
		"roles":       roles,
		"permissions": perms,
		"required":    capability,
	}
}
