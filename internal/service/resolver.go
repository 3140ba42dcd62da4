package service

import (
	"context"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/emrgen/identity/internal/model"
	"github.com/emrgen/identity/internal/store"
	"github.com/sirupsen/logrus"
)

// Outcome describes what a resolution did to storage.
type Outcome string

const (
	// OutcomeCreated started a new cluster.
	OutcomeCreated Outcome = "created"
	// OutcomeAttached added a secondary to an existing cluster.
	OutcomeAttached Outcome = "attached"
	// OutcomeMerged joined two or more clusters.
	OutcomeMerged Outcome = "merged"
	// OutcomeUnchanged found the evidence already represented.
	OutcomeUnchanged Outcome = "unchanged"
)

// Resolution is the result of one committed resolution.
type Resolution struct {
	View    *model.ContactView
	Outcome Outcome
	// Merged lists the former primaries absorbed by the winner, oldest first.
	Merged []uint
	// Created is the row inserted by this resolution, if any.
	Created *model.Contact

	primaryID uint
}

// Resolver attaches contact evidence to clusters inside a single transaction.
type Resolver struct {
	store store.Store
}

func NewResolver(store store.Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve commits one resolution and reads back its consolidated view.
func (r *Resolver) Resolve(ctx context.Context, email, phone *string) (*Resolution, error) {
	res, err := r.Commit(ctx, email, phone)
	if err != nil {
		return nil, err
	}

	if err := r.ReadView(ctx, res); err != nil {
		return nil, err
	}

	return res, nil
}

// Commit runs the resolution transaction. Any error rolls the whole attempt
// back; a nil error means the returned resolution is durable.
func (r *Resolver) Commit(ctx context.Context, email, phone *string) (*Resolution, error) {
	res := &Resolution{}

	err := r.store.Transaction(ctx, func(tx store.Store) error {
		matches, err := tx.FindMatches(ctx, email, phone)
		if err != nil {
			return err
		}

		if len(matches) == 0 {
			contact := model.NewPrimary(email, phone)
			if err := tx.CreateContact(ctx, contact); err != nil {
				return err
			}
			res.Outcome = OutcomeCreated
			res.Created = contact
			res.primaryID = contact.ID
			return nil
		}

		roots, err := distinctRoots(ctx, tx, matches)
		if err != nil {
			return err
		}

		winner := roots[0]
		res.primaryID = winner.ID
		res.Outcome = OutcomeUnchanged

		for _, loser := range roots[1:] {
			if err := tx.MergeCluster(ctx, loser.ID, winner.ID); err != nil {
				return err
			}
			res.Merged = append(res.Merged, loser.ID)
		}
		if len(res.Merged) > 0 {
			res.Outcome = OutcomeMerged
			logrus.WithFields(logrus.Fields{
				"winner": winner.ID,
				"losers": res.Merged,
			}).Info("merged contact clusters")
		}

		cluster, err := tx.ListCluster(ctx, winner.ID)
		if err != nil {
			return err
		}

		if covered(cluster, email, phone) {
			return nil
		}

		contact := model.NewSecondary(email, phone, winner.ID)
		if err := tx.CreateContact(ctx, contact); err != nil {
			return err
		}
		res.Created = contact
		if res.Outcome == OutcomeUnchanged {
			res.Outcome = OutcomeAttached
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// ReadView fills res.View from storage. A new cluster is its single row, so
// it is built without a read.
func (r *Resolver) ReadView(ctx context.Context, res *Resolution) error {
	var err error
	if res.Outcome == OutcomeCreated {
		res.View, err = BuildView(res.primaryID, []*model.Contact{res.Created})
		return err
	}

	cluster, err := r.store.ListCluster(ctx, res.primaryID)
	if err != nil {
		return err
	}

	res.View, err = BuildView(res.primaryID, cluster)
	return err
}

// distinctRoots resolves each match to its primary and returns the distinct
// primaries, oldest first.
func distinctRoots(ctx context.Context, tx store.Store, matches []*model.Contact) ([]*model.Contact, error) {
	seen := mapset.NewThreadUnsafeSet[uint]()
	roots := make([]*model.Contact, 0, len(matches))

	for _, match := range matches {
		root, err := resolveRoot(ctx, tx, match)
		if err != nil {
			return nil, err
		}
		if seen.Add(root.ID) {
			roots = append(roots, root)
		}
	}

	sort.SliceStable(roots, func(i, j int) bool {
		if roots[i].CreatedAt.Equal(roots[j].CreatedAt) {
			return roots[i].ID < roots[j].ID
		}
		return roots[i].CreatedAt.Before(roots[j].CreatedAt)
	})

	return roots, nil
}

// covered reports whether every provided value already appears in the cluster.
func covered(cluster []*model.Contact, email, phone *string) bool {
	emailCovered := email == nil
	phoneCovered := phone == nil

	for _, c := range cluster {
		if !emailCovered && c.Email != nil && *c.Email == *email {
			emailCovered = true
		}
		if !phoneCovered && c.PhoneNumber != nil && *c.PhoneNumber == *phone {
			phoneCovered = true
		}
	}

	return emailCovered && phoneCovered
}
