package store

import (
	"context"
	"errors"
	"strings"

	"github.com/emrgen/identity/internal/model"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const clusterOrder = "createdat asc, id asc"

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db: db,
	}
}

var _ Store = (*GormStore)(nil)

type GormStore struct {
	db *gorm.DB
}

func (g *GormStore) FindMatches(ctx context.Context, email, phone *string) ([]*model.Contact, error) {
	var conditions []string
	var args []any

	if email != nil {
		conditions = append(conditions, "email = ?")
		args = append(args, *email)
	}
	if phone != nil {
		conditions = append(conditions, "phonenumber = ?")
		args = append(args, *phone)
	}
	if len(conditions) == 0 {
		return nil, ErrEmptyMatch
	}

	var contacts []*model.Contact
	err := g.db.WithContext(ctx).
		Where("("+strings.Join(conditions, " OR ")+")", args...).
		Order(clusterOrder).
		Find(&contacts).Error

	return contacts, err
}

func (g *GormStore) GetContact(ctx context.Context, id uint) (*model.Contact, error) {
	var contact model.Contact
	err := g.db.WithContext(ctx).Where("id = ?", id).First(&contact).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrContactNotFound
	}
	if err != nil {
		return nil, err
	}

	return &contact, nil
}

func (g *GormStore) ListCluster(ctx context.Context, primaryID uint) ([]*model.Contact, error) {
	var contacts []*model.Contact
	err := g.db.WithContext(ctx).
		Where("(id = ? OR linkedid = ?)", primaryID, primaryID).
		Order(clusterOrder).
		Find(&contacts).Error

	return contacts, err
}

func (g *GormStore) CreateContact(ctx context.Context, contact *model.Contact) error {
	return g.db.WithContext(ctx).Create(contact).Error
}

// MergeCluster rewrites loser and its secondaries to hang off winner.
// NOTE: should run in a transaction
func (g *GormStore) MergeCluster(ctx context.Context, loserID, winnerID uint) error {
	if err := g.requirePrimary(ctx, winnerID); err != nil {
		return err
	}

	db := g.db.WithContext(ctx)

	err := db.Model(&model.Contact{}).
		Where("id = ?", loserID).
		Updates(map[string]any{
			"linkedid":       winnerID,
			"linkprecedence": model.Secondary,
		}).Error
	if err != nil {
		return err
	}

	res := db.Model(&model.Contact{}).
		Where("linkedid = ?", loserID).
		Update("linkedid", winnerID)
	if res.Error != nil {
		return res.Error
	}

	logrus.Infof("merged contact %d into %d, moved %d secondaries", loserID, winnerID, res.RowsAffected)

	return nil
}

func (g *GormStore) RelinkContact(ctx context.Context, id, primaryID uint) error {
	if err := g.requirePrimary(ctx, primaryID); err != nil {
		return err
	}

	return g.db.WithContext(ctx).Model(&model.Contact{}).
		Where("id = ? AND linkprecedence = ?", id, model.Secondary).
		Update("linkedid", primaryID).Error
}

const linkageViolationsQuery = `
SELECT c.* FROM contact AS c
LEFT JOIN contact AS p ON p.id = c.linkedid
WHERE c.deletedat IS NULL AND (
	(c.linkprecedence = ? AND c.linkedid IS NOT NULL) OR
	(c.linkprecedence = ? AND (p.id IS NULL OR p.deletedat IS NOT NULL OR p.linkprecedence <> ?))
)
ORDER BY c.createdat asc, c.id asc`

func (g *GormStore) ListLinkageViolations(ctx context.Context) ([]*model.Contact, error) {
	var contacts []*model.Contact
	err := g.db.WithContext(ctx).
		Raw(linkageViolationsQuery, model.Primary, model.Secondary, model.Primary).
		Scan(&contacts).Error

	return contacts, err
}

func (g *GormStore) requirePrimary(ctx context.Context, id uint) error {
	var count int64
	err := g.db.WithContext(ctx).Model(&model.Contact{}).
		Where("id = ? AND linkprecedence = ? AND linkedid IS NULL", id, model.Primary).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotPrimary
	}

	return nil
}

func (g *GormStore) Migrate() error {
	return model.Migrate(g.db)
}

func (g *GormStore) Transaction(ctx context.Context, f func(tx Store) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return f(&GormStore{db: tx})
	})
}
