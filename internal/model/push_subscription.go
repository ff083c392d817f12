package model

import "time"

// PushSubscription holds the information for a browser push subscription.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Records []RecordSubscription `gorm:"foreignKey:Endpoint;references:Endpoint;constraint:OnDelete:CASCADE"`
}

// RecordSubscription links a push endpoint to a record whose batch outcome
// it wants to hear about.
type RecordSubscription struct {
	Endpoint string `gorm:"primaryKey"`
	RecordID string `gorm:"primaryKey;size:256;index"`
}
