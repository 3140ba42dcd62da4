package service

import (
	"context"
	"errors"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/emrgen/identity/internal/metrics"
	"github.com/emrgen/identity/internal/model"
	"github.com/emrgen/identity/internal/store"
	"github.com/sirupsen/logrus"
)

// maxLinkHops bounds how far a linked id chain is followed before it is
// treated as a cycle. Healthy clusters need exactly one hop.
const maxLinkHops = 16

// resolveRoot returns the primary anchoring the contact's cluster. A chain
// longer than one hop is flattened in place so the row points at its root.
func resolveRoot(ctx context.Context, tx store.Store, contact *model.Contact) (*model.Contact, error) {
	if contact.IsPrimary() {
		return contact, nil
	}

	visited := mapset.NewThreadUnsafeSet[uint](contact.ID)
	current := contact
	hops := 0

	for !current.IsPrimary() {
		if current.LinkedID == nil {
			return nil, fmt.Errorf("contact %d: %w", current.ID, model.ErrSecondaryWithoutLink)
		}
		if hops == maxLinkHops || visited.Contains(*current.LinkedID) {
			return nil, fmt.Errorf("contact %d: %w", contact.ID, ErrLinkCycle)
		}

		next, err := tx.GetContact(ctx, *current.LinkedID)
		if errors.Is(err, store.ErrContactNotFound) {
			return nil, fmt.Errorf("contact %d -> %d: %w", current.ID, *current.LinkedID, ErrDanglingLink)
		}
		if err != nil {
			return nil, err
		}

		visited.Add(next.ID)
		current = next
		hops++
	}

	if hops > 1 {
		metrics.LinkageViolationsTotal.Inc()
		logrus.WithFields(logrus.Fields{
			"contact": contact.ID,
			"root":    current.ID,
			"hops":    hops,
		}).Warn("chained contact linkage, relinking to root")

		if err := tx.RelinkContact(ctx, contact.ID, current.ID); err != nil {
			return nil, err
		}
	}

	return current, nil
}
