// Package domain defines the static access rules that decide which roles may see
// which encrypted fields and file types.
package domain

// Role is a principal's role as asserted by the identity service.
type Role string

const (
	RoleAdmin         Role = "admin"
	RoleDoctor        Role = "doctor"
	RoleNurse         Role = "nurse"
	RoleAccountant    Role = "accountant"
	RolePharmacist    Role = "pharmacist"
	RoleLabTechnician Role = "lab_technician"
	RoleReceptionist  Role = "receptionist"
)

// FieldAccessRule lists the roles allowed to decrypt one field of one table.
type FieldAccessRule struct {
	Table        string `yaml:"table"`
	Field        string `yaml:"field"`
	AllowedRoles []Role `yaml:"roles"`
	// RequireStepUp forces an MFA step-up before the field is decrypted.
	RequireStepUp bool `yaml:"step_up"`
}

// FileAccessRule lists the roles allowed to decrypt files of one resource type.
// File decryption always requires step-up authentication.
type FileAccessRule struct {
	ResourceType string `yaml:"resource_type"`
	AllowedRoles []Role `yaml:"roles"`
}

// Document is the on-disk policy layout.
type Document struct {
	Fields []FieldAccessRule `yaml:"fields"`
	Files  []FileAccessRule  `yaml:"files"`
}
