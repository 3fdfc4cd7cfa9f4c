package model

import "time"

type EnrollmentStatus string

const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentStatusCancelled EnrollmentStatus = "CANCELLED"
)

// DripSequence is an ordered template of steps. Each step is a Campaign with
// IsDripStep set, ordered by StepOrder.
type DripSequence struct {
	ID        int64  `gorm:"primaryKey;autoIncrement;column:id;<-:create"`
	OrgID     int64  `gorm:"column:org_id;index;<-:create"`
	ChannelID int64  `gorm:"column:channel_id"`
	Name      string `gorm:"column:name"`
	IsActive  bool   `gorm:"column:is_active"`

	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// DripEnrollment tracks one contact's position in one sequence.
// NextMessageAt is null iff the enrollment is terminal.
type DripEnrollment struct {
	ID         int64 `gorm:"primaryKey;autoIncrement;column:id;<-:create"`
	OrgID      int64 `gorm:"column:org_id;<-:create"`
	SequenceID int64 `gorm:"column:sequence_id;index:idx_sequence_contact,unique;<-:create"`
	ContactID  int64 `gorm:"column:contact_id;index:idx_sequence_contact,unique;<-:create"`

	CurrentStep   int              `gorm:"column:current_step"`
	NextMessageAt *time.Time       `gorm:"column:next_message_at;index"`
	Status        EnrollmentStatus `gorm:"column:status;index"`

	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (e *DripEnrollment) IsTerminal() bool {
	return e.Status == EnrollmentStatusCompleted || e.Status == EnrollmentStatusCancelled
}
