package gate

import (
	"sort"
	"strings"

	"nexus-auth/backend/internal/ratelimit"
)

// OperationPolicy is the access and admission policy attached to an operation
// or a group of operations when routes are registered.
type OperationPolicy struct {
	// Pass exempts the operation from authentication and authorization.
	Pass bool
	// Capability is the permission required. Empty means any logged-in user.
	Capability string
	// Limit, when set, subjects the operation to the admission controller.
	Limit *ratelimit.Policy
}

type groupPolicy struct {
	prefix string
	policy OperationPolicy
}

// Policies maps operations to their policy. Register everything before
// serving; lookups do not lock.
type Policies struct {
	ops    map[string]OperationPolicy
	groups []groupPolicy
}

// NewPolicies returns an empty table. Unregistered operations require a
// credential and no capability.
func NewPolicies() *Policies {
	return &Policies{ops: make(map[string]OperationPolicy)}
}

// Register sets the policy of one operation.
func (p *Policies) Register(operation string, policy OperationPolicy) *Policies {
	p.ops[operation] = policy
	return p
}

// RegisterGroup sets the policy of every operation whose name starts with prefix.
func (p *Policies) RegisterGroup(prefix string, policy OperationPolicy) *Policies {
	p.groups = append(p.groups, groupPolicy{prefix: prefix, policy: policy})
	sort.SliceStable(p.groups, func(i, j int) bool { return len(p.groups[i].prefix) > len(p.groups[j].prefix) })
	return p
}

// Lookup returns the effective policy for operation. The longest matching
// group applies first; the operation's own policy overrides its capability
// and limit. Pass on either level exempts the operation.
func (p *Policies) Lookup(operation string) OperationPolicy {
	var eff OperationPolicy
	for _, g := range p.groups {
		if strings.HasPrefix(operation, g.prefix) {
			eff = g.policy
			break
		}
	}
	own, ok := p.ops[operation]
	if !ok {
		return eff
	}
	eff.Pass = eff.Pass || own.Pass
	if own.Capability != "" {
		eff.Capability = own.Capability
	}
	if own.Limit != nil {
		eff.Limit = own.Limit
	}
	return eff
}
