package service

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	policyDomain "github.com/allisson/gatekeeper/internal/policy/domain"
)

var allRoles = []policyDomain.Role{
	policyDomain.RoleAdmin,
	policyDomain.RoleDoctor,
	policyDomain.RoleNurse,
	policyDomain.RoleAccountant,
	policyDomain.RolePharmacist,
	policyDomain.RoleLabTechnician,
	policyDomain.RoleReceptionist,
	policyDomain.Role(""),
	policyDomain.Role("ADMIN"),
}

func TestPolicy_CanAccess_EveryDefinedPair(t *testing.T) {
	p := Default()
	doc := policyDomain.DefaultDocument()

	for _, rule := range doc.Fields {
		for _, role := range allRoles {
			expected := slices.Contains(rule.AllowedRoles, role)
			assert.Equal(t, expected, p.CanAccess(rule.Table, rule.Field, role),
				"%s.%s as %q", rule.Table, rule.Field, role)
		}
	}
	assert.Len(t, p.Fields(), len(doc.Fields))
}

func TestPolicy_CanAccess_DenyByDefault(t *testing.T) {
	p := Default()

	absent := [][2]string{
		{"patients", "password_hash"},
		{"patients", ""},
		{"", "medical_history"},
		{"billing", "medical_history"},
		{"patients", "insurance_claim"},
		{"unknown_table", "anything"},
		{"Patients", "medical_history"},
	}
	for _, pair := range absent {
		for _, role := range allRoles {
			assert.False(t, p.CanAccess(pair[0], pair[1], role), "%s.%s as %q", pair[0], pair[1], role)
		}
	}

	empty, err := New(policyDomain.Document{})
	require.NoError(t, err)
	for _, rule := range policyDomain.DefaultDocument().Fields {
		assert.False(t, empty.CanAccess(rule.Table, rule.Field, policyDomain.RoleAdmin))
	}
}

func TestPolicy_Scenarios(t *testing.T) {
	p := Default()
	assert.True(t, p.CanAccess("patients", "medical_history", policyDomain.RoleNurse))
	assert.False(t, p.CanAccess("billing", "insurance_claim", policyDomain.RoleNurse))
	assert.True(t, p.CanAccess("billing", "insurance_claim", policyDomain.RoleAccountant))
}

func TestPolicy_CanAccessFile(t *testing.T) {
	p := Default()
	for _, rule := range policyDomain.DefaultDocument().Files {
		for _, role := range allRoles {
			assert.Equal(t, slices.Contains(rule.AllowedRoles, role), p.CanAccessFile(rule.ResourceType, role))
		}
	}
	for _, role := range allRoles {
		assert.False(t, p.CanAccessFile("unregistered_type", role))
	}
}

func TestPolicy_RequiresStepUp(t *testing.T) {
	p := Default()
	assert.False(t, p.RequiresStepUp("patients", "medical_history"))
	assert.True(t, p.RequiresStepUp("patients", "ssn"))
	assert.True(t, p.RequiresStepUp("nope", "nope"))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(policyDomain.Document{Fields: []policyDomain.FieldAccessRule{{Table: "patients"}}})
	assert.ErrorIs(t, err, policyDomain.ErrInvalidPolicy)

	_, err = New(policyDomain.Document{Fields: []policyDomain.FieldAccessRule{
		{Table: "patients", Field: "ssn"},
		{Table: "patients", Field: "ssn"},
	}})
	assert.ErrorIs(t, err, policyDomain.ErrDuplicateRule)

	_, err = New(policyDomain.Document{Files: []policyDomain.FileAccessRule{{}}})
	assert.ErrorIs(t, err, policyDomain.ErrInvalidPolicy)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid document", func(t *testing.T) {
		path := filepath.Join(dir, "policy.yaml")
		content := `
fields:
  - table: patients
    field: medical_history
    roles: [doctor, nurse, admin]
  - table: billing
    field: insurance_claim
    roles: [accountant, admin]
    step_up: true
files:
  - resource_type: lab_report
    roles: [doctor]
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		p, err := LoadFile(path)
		require.NoError(t, err)
		assert.True(t, p.CanAccess("patients", "medical_history", policyDomain.RoleNurse))
		assert.False(t, p.CanAccess("billing", "insurance_claim", policyDomain.RoleNurse))
		assert.True(t, p.RequiresStepUp("billing", "insurance_claim"))
		assert.True(t, p.CanAccessFile("lab_report", policyDomain.RoleDoctor))
	})

	t.Run("unknown keys are rejected", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("fields:\n  - tabel: x\n"), 0o600))
		_, err := LoadFile(path)
		assert.ErrorIs(t, err, policyDomain.ErrInvalidPolicy)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(dir, "missing.yaml"))
		assert.Error(t, err)
	})
}
