package service

import (
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/emrgen/identity/internal/model"
)

// BuildView projects a cluster snapshot, ordered by creation, into its
// consolidated view. The primary's values lead; later duplicates are dropped.
func BuildView(primaryID uint, cluster []*model.Contact) (*model.ContactView, error) {
	var primary *model.Contact
	for _, c := range cluster {
		if c.ID == primaryID {
			primary = c
			break
		}
	}
	if primary == nil {
		return nil, ErrPrimaryNotInCluster
	}

	view := &model.ContactView{
		PrimaryContactID:    primaryID,
		Emails:              make([]string, 0),
		PhoneNumbers:        make([]string, 0),
		SecondaryContactIDs: make([]uint, 0),
	}

	emails := mapset.NewThreadUnsafeSet[string]()
	phones := mapset.NewThreadUnsafeSet[string]()
	collect := func(c *model.Contact) {
		if c.Email != nil && *c.Email != "" && emails.Add(*c.Email) {
			view.Emails = append(view.Emails, *c.Email)
		}
		if c.PhoneNumber != nil && *c.PhoneNumber != "" && phones.Add(*c.PhoneNumber) {
			view.PhoneNumbers = append(view.PhoneNumbers, *c.PhoneNumber)
		}
	}

	collect(primary)
	for _, c := range cluster {
		if c.ID == primaryID {
			continue
		}
		collect(c)
		view.SecondaryContactIDs = append(view.SecondaryContactIDs, c.ID)
	}

	return view, nil
}
