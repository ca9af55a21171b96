package domain

// Role is the caller role resolved by the auth collaborator
type Role string

const (
	RoleAdmin            Role = "admin"
	RolePhysician        Role = "physician"
	RoleNurse            Role = "nurse"
	RoleMedicalAssistant Role = "medical_assistant"

	// Observer roles: full read access to records elsewhere in the system,
	// but not eligible to host meetings.
	RoleAuditor    Role = "auditor"
	RoleQAReviewer Role = "qa_reviewer"
)

var meetingHostRoles = map[Role]bool{
	RoleAdmin:            true,
	RolePhysician:        true,
	RoleNurse:            true,
	RoleMedicalAssistant: true,
}

// CanHostMeeting reports whether the role is allowed to create and therefore
// end meetings. Unknown roles are denied.
func (r Role) CanHostMeeting() bool {
	return meetingHostRoles[r]
}

var auditReadRoles = map[Role]bool{
	RoleAdmin:      true,
	RoleAuditor:    true,
	RoleQAReviewer: true,
}

// CanReadAuditTrail reports whether the role may read back the audit trail.
// This is the one surface the observer roles get here.
func (r Role) CanReadAuditTrail() bool {
	return auditReadRoles[r]
}
