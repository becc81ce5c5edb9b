// Package access decides which principals may change optimization state.
package access

import (
	"strings"

	"assetguard/internal/fault"
)

// Policy allows mutations to the listed operators. An empty policy allows
// every principal, which is the single-operator default.
type Policy struct {
	operators map[string]struct{}
}

func NewPolicy(operators []string) Policy {
	p := Policy{operators: map[string]struct{}{}}
	for _, op := range operators {
		if op = strings.TrimSpace(op); op != "" {
			p.operators[op] = struct{}{}
		}
	}
	return p
}

func (p Policy) Open() bool { return len(p.operators) == 0 }

// CanMutate reports whether principal may run state-changing operations.
func (p Policy) CanMutate(principal string) bool {
	if p.Open() {
		return true
	}
	_, ok := p.operators[strings.TrimSpace(principal)]
	return ok
}

// Authorize returns a PermissionDenied error when principal may not run op.
func (p Policy) Authorize(principal, op string) error {
	if p.CanMutate(principal) {
		return nil
	}
	if principal == "" {
		return fault.PermissionDenied("ACL_DENIED", "%s requires an operator principal (use --as)", op)
	}
	return fault.PermissionDenied("ACL_DENIED", "principal %q may not run %s", principal, op)
}
