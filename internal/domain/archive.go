package domain

import "time"

// DonationRecord is the SQLite archive row for an accepted donation. The
// archive outlives the bounded in-memory leaderboard window and doubles as a
// durable second-layer dedup index across restarts (primary-key conflict on
// redelivered ids is ignored).
type DonationRecord struct {
	ID        string    `json:"id"         gorm:"type:TEXT NOT NULL;primaryKey"`
	At        time.Time `json:"at"         gorm:"type:DATETIME NOT NULL;index"`
	Value     float64   `json:"value"      gorm:"not null"`
	Sender    string    `json:"sender"     gorm:"type:TEXT NOT NULL;index"`
	Message   string    `json:"message"    gorm:"type:TEXT"`
	Status    string    `json:"status"     gorm:"type:TEXT"`
	URL       string    `json:"url,omitempty"     gorm:"type:TEXT"`
	VideoID   string    `json:"videoId,omitempty" gorm:"type:TEXT"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName implements the GORM tabler interface.
func (DonationRecord) TableName() string { return "donations" }
