package entity

import "time"

// SequenceClaim reserves one allocated identifier. The primary key on
// Identifier is what makes concurrent allocation safe.
type SequenceClaim struct {
	Identifier string    `gorm:"type:varchar(32);primaryKey" json:"identifier"`
	Scope      string    `gorm:"type:varchar(64);not null;index" json:"scope"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (SequenceClaim) TableName() string {
	return "sequence_claims"
}
