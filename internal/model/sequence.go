package model

// DocumentSequence holds the last number handed out for a prefix within a period.
type DocumentSequence struct {
	Prefix     string `gorm:"type:varchar(10);primaryKey"`
	Period     string `gorm:"type:varchar(7);primaryKey"`
	LastNumber int    `gorm:"type:int;not null;default:0"`
}
