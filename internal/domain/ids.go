package domain

// RecordID is the stable identifier of a member record. It is assigned once,
// never reused, and is the document key in whichever partition holds the record.
type RecordID string

// Partition names one of the two logical record stores. A given RecordID exists
// in at most one partition at a time.
type Partition string

const (
	PartitionMembers      Partition = "members"
	PartitionApplications Partition = "applications"
)

// Status is the derived lifecycle label. It is never persisted as an independent
// source of truth for Members-partition records; see DeriveStatus.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRejected Status = "rejected"
	StatusActive   Status = "active"
	StatusExpired  Status = "expired"
)

// RoleTag is an enumerated member qualification.
type RoleTag string

const (
	RoleInstructor RoleTag = "Istruttore"
	RoleBoard      RoleTag = "Consigliere"
	RoleVolunteer  RoleTag = "Volontario"
	RoleFounder    RoleTag = "Socio Fondatore"
)

// ValidRoleTag reports whether t is one of the enumerated qualifications.
func ValidRoleTag(t RoleTag) bool {
	switch t {
	case RoleInstructor, RoleBoard, RoleVolunteer, RoleFounder:
		return true
	}
	return false
}
