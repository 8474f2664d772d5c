package domain

// DefaultDocument is the built-in policy used when no policy file is configured.
// It covers the sensitive fields and file types of the clinical record surface.
func DefaultDocument() Document {
	clinical := []Role{RoleDoctor, RoleNurse, RoleAdmin}
	physicians := []Role{RoleDoctor, RoleAdmin}
	finance := []Role{RoleAccountant, RoleAdmin}
	front := []Role{RoleDoctor, RoleNurse, RoleReceptionist, RoleAdmin}

	return Document{
		Fields: []FieldAccessRule{
			{Table: "patients", Field: "medical_history", AllowedRoles: clinical},
			{Table: "patients", Field: "allergies", AllowedRoles: clinical},
			{Table: "patients", Field: "ssn", AllowedRoles: []Role{RoleAdmin}, RequireStepUp: true},
			{Table: "patients", Field: "date_of_birth", AllowedRoles: front},
			{Table: "patients", Field: "contact_phone", AllowedRoles: front},
			{Table: "patients", Field: "address", AllowedRoles: front},
			{Table: "appointments", Field: "notes", AllowedRoles: clinical},
			{Table: "appointments", Field: "diagnosis", AllowedRoles: physicians, RequireStepUp: true},
			{Table: "billing", Field: "insurance_claim", AllowedRoles: finance},
			{Table: "billing", Field: "card_number", AllowedRoles: finance, RequireStepUp: true},
			{Table: "prescriptions", Field: "medication", AllowedRoles: []Role{
				RoleDoctor, RoleNurse, RolePharmacist, RoleAdmin,
			}},
			{Table: "prescriptions", Field: "dosage", AllowedRoles: []Role{
				RoleDoctor, RoleNurse, RolePharmacist, RoleAdmin,
			}},
			{Table: "lab_orders", Field: "results", AllowedRoles: []Role{
				RoleDoctor, RoleLabTechnician, RoleAdmin,
			}},
		},
		Files: []FileAccessRule{
			{ResourceType: "lab_report", AllowedRoles: []Role{RoleDoctor, RoleLabTechnician, RoleAdmin}},
			{ResourceType: "imaging", AllowedRoles: physicians},
			{ResourceType: "prescription_scan", AllowedRoles: []Role{RoleDoctor, RolePharmacist, RoleAdmin}},
			{ResourceType: "patient_document", AllowedRoles: clinical},
			{ResourceType: "billing_statement", AllowedRoles: finance},
		},
	}
}
