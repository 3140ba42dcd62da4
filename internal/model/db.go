package model

import "gorm.io/gorm"

var contactIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_contact_email ON contact(email) WHERE deletedat IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_contact_phone ON contact(phonenumber) WHERE deletedat IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_contact_linkedid ON contact(linkedid) WHERE deletedat IS NULL`,
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Contact{}); err != nil {
		return err
	}

	// partial indexes keep lookups on live rows only
	for _, stmt := range contactIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}

	return nil
}
