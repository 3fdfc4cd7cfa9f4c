package model

import "time"

type Contact struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id;<-:create"`
	OrgID     int64     `gorm:"column:org_id;index;<-:create"`
	Phone     string    `gorm:"column:phone"`
	Name      string    `gorm:"column:name"`
	IsOptedIn bool      `gorm:"column:is_opted_in"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}
