// Package service answers role-scoped access questions over an immutable rule table.
package service

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	policyDomain "github.com/allisson/gatekeeper/internal/policy/domain"
)

type fieldKey struct {
	table string
	field string
}

type fieldEntry struct {
	roles  map[policyDomain.Role]struct{}
	stepUp bool
}

// Policy is the compiled, read-only rule table. It is built once and never mutated,
// so it is safe to share between goroutines without locking.
type Policy struct {
	fields map[fieldKey]fieldEntry
	files  map[string]map[policyDomain.Role]struct{}
}

// New compiles doc into a Policy.
func New(doc policyDomain.Document) (*Policy, error) {
	p := &Policy{
		fields: make(map[fieldKey]fieldEntry, len(doc.Fields)),
		files:  make(map[string]map[policyDomain.Role]struct{}, len(doc.Files)),
	}

	for _, rule := range doc.Fields {
		if rule.Table == "" || rule.Field == "" {
			return nil, fmt.Errorf("%w: field rule needs table and field", policyDomain.ErrInvalidPolicy)
		}
		key := fieldKey{table: rule.Table, field: rule.Field}
		if _, dup := p.fields[key]; dup {
			return nil, fmt.Errorf("%w: %s.%s", policyDomain.ErrDuplicateRule, rule.Table, rule.Field)
		}
		p.fields[key] = fieldEntry{roles: roleSet(rule.AllowedRoles), stepUp: rule.RequireStepUp}
	}

	for _, rule := range doc.Files {
		if rule.ResourceType == "" {
			return nil, fmt.Errorf("%w: file rule needs resource_type", policyDomain.ErrInvalidPolicy)
		}
		if _, dup := p.files[rule.ResourceType]; dup {
			return nil, fmt.Errorf("%w: file type %s", policyDomain.ErrDuplicateRule, rule.ResourceType)
		}
		p.files[rule.ResourceType] = roleSet(rule.AllowedRoles)
	}

	return p, nil
}

// Default compiles the built-in rule table.
func Default() *Policy {
	p, err := New(policyDomain.DefaultDocument())
	if err != nil {
		panic(err)
	}
	return p
}

// LoadFile reads a YAML policy document from path.
func LoadFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var doc policyDomain.Document
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", policyDomain.ErrInvalidPolicy, err)
	}

	return New(doc)
}

// CanAccess reports whether role may decrypt field of table.
// A pair without a rule is denied for every role, admin included.
func (p *Policy) CanAccess(table, field string, role policyDomain.Role) bool {
	entry, ok := p.fields[fieldKey{table: table, field: field}]
	if !ok {
		return false
	}
	_, allowed := entry.roles[role]
	return allowed
}

// CanAccessFile is the coarse check for whole-file resources.
func (p *Policy) CanAccessFile(resourceType string, role policyDomain.Role) bool {
	roles, ok := p.files[resourceType]
	if !ok {
		return false
	}
	_, allowed := roles[role]
	return allowed
}

// RequiresStepUp reports whether decrypting field of table needs MFA step-up.
// Unknown fields report true; they are denied by CanAccess anyway.
func (p *Policy) RequiresStepUp(table, field string) bool {
	entry, ok := p.fields[fieldKey{table: table, field: field}]
	if !ok {
		return true
	}
	return entry.stepUp
}

// Fields returns every (table, field) pair that has a rule.
func (p *Policy) Fields() [][2]string {
	pairs := make([][2]string, 0, len(p.fields))
	for key := range p.fields {
		pairs = append(pairs, [2]string{key.table, key.field})
	}
	return pairs
}

func roleSet(roles []policyDomain.Role) map[policyDomain.Role]struct{} {
	set := make(map[policyDomain.Role]struct{}, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}
