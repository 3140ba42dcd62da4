package model

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// LinkPrecedence marks a contact as the anchor of its cluster or as a member of one.
type LinkPrecedence string

const (
	Primary   LinkPrecedence = "primary"
	Secondary LinkPrecedence = "secondary"
)

var (
	ErrPrimaryWithLink      = errors.New("primary contact must not carry a linked id")
	ErrSecondaryWithoutLink = errors.New("secondary contact must carry a linked id")
	ErrSelfLink             = errors.New("contact cannot link to itself")
	ErrUnknownPrecedence    = errors.New("unknown link precedence")
)

// Contact is a single identity fact. Column names are lowercase without
// separators to match existing contact tables.
type Contact struct {
	ID             uint           `gorm:"primaryKey;column:id" json:"id"`
	PhoneNumber    *string        `gorm:"column:phonenumber;size:20" json:"phoneNumber"`
	Email          *string        `gorm:"column:email;size:255" json:"email"`
	LinkedID       *uint          `gorm:"column:linkedid" json:"linkedId"`
	LinkPrecedence LinkPrecedence `gorm:"column:linkprecedence;size:10;not null;check:chk_contact_linkprecedence,linkprecedence IN ('primary', 'secondary')" json:"linkPrecedence"`
	CreatedAt      time.Time      `gorm:"column:createdat;not null" json:"createdAt"`
	UpdatedAt      time.Time      `gorm:"column:updatedat;not null" json:"updatedAt"`
	DeletedAt      gorm.DeletedAt `gorm:"column:deletedat" json:"deletedAt"`
}

func (c *Contact) TableName() string {
	return "contact"
}

// IsPrimary reports whether the contact anchors its cluster.
func (c *Contact) IsPrimary() bool {
	return c.LinkPrecedence == Primary
}

// Validate checks the linkage shape of a single row.
func (c *Contact) Validate() error {
	switch c.LinkPrecedence {
	case Primary:
		if c.LinkedID != nil {
			return ErrPrimaryWithLink
		}
	case Secondary:
		if c.LinkedID == nil {
			return ErrSecondaryWithoutLink
		}
		if c.ID != 0 && *c.LinkedID == c.ID {
			return ErrSelfLink
		}
	default:
		return ErrUnknownPrecedence
	}

	return nil
}

func (c *Contact) BeforeCreate(tx *gorm.DB) error {
	return c.Validate()
}

// NewPrimary builds a fresh cluster anchor.
func NewPrimary(email, phone *string) *Contact {
	return &Contact{
		Email:          email,
		PhoneNumber:    phone,
		LinkPrecedence: Primary,
	}
}

// NewSecondary builds a row attached to the given primary.
func NewSecondary(email, phone *string, primaryID uint) *Contact {
	return &Contact{
		Email:          email,
		PhoneNumber:    phone,
		LinkedID:       &primaryID,
		LinkPrecedence: Secondary,
	}
}
