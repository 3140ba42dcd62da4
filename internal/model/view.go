package model

// ContactView is the consolidated projection of one cluster.
type ContactView struct {
	PrimaryContactID    uint     `json:"primaryContactId"`
	Emails              []string `json:"emails"`
	PhoneNumbers        []string `json:"phoneNumbers"`
	SecondaryContactIDs []uint   `json:"secondaryContactIds"`
}
