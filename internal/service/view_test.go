package service

import (
	"testing"

	"github.com/emrgen/identity/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildView(t *testing.T) {
	one := uint(1)

	tests := []struct {
		name    string
		primary uint
		cluster []*model.Contact
		want    *model.ContactView
	}{
		{
			name:    "lone primary",
			primary: 1,
			cluster: []*model.Contact{
				{ID: 1, Email: ptr("a@x.com"), PhoneNumber: ptr("111"), LinkPrecedence: model.Primary},
			},
			want: &model.ContactView{
				PrimaryContactID:    1,
				Emails:              []string{"a@x.com"},
				PhoneNumbers:        []string{"111"},
				SecondaryContactIDs: []uint{},
			},
		},
		{
			name:    "primary values lead and duplicates collapse",
			primary: 1,
			cluster: []*model.Contact{
				{ID: 1, Email: ptr("a@x.com"), LinkPrecedence: model.Primary},
				{ID: 4, Email: ptr("b@x.com"), PhoneNumber: ptr("111"), LinkedID: &one, LinkPrecedence: model.Secondary},
				{ID: 7, Email: ptr("a@x.com"), PhoneNumber: ptr("222"), LinkedID: &one, LinkPrecedence: model.Secondary},
				{ID: 9, Email: ptr("b@x.com"), PhoneNumber: ptr("111"), LinkedID: &one, LinkPrecedence: model.Secondary},
			},
			want: &model.ContactView{
				PrimaryContactID:    1,
				Emails:              []string{"a@x.com", "b@x.com"},
				PhoneNumbers:        []string{"111", "222"},
				SecondaryContactIDs: []uint{4, 7, 9},
			},
		},
		{
			name:    "primary without phone keeps secondary order",
			primary: 1,
			cluster: []*model.Contact{
				{ID: 1, Email: ptr("a@x.com"), LinkPrecedence: model.Primary},
				{ID: 2, PhoneNumber: ptr("333"), LinkedID: &one, LinkPrecedence: model.Secondary},
				{ID: 3, PhoneNumber: ptr("111"), Email: ptr(""), LinkedID: &one, LinkPrecedence: model.Secondary},
			},
			want: &model.ContactView{
				PrimaryContactID:    1,
				Emails:              []string{"a@x.com"},
				PhoneNumbers:        []string{"333", "111"},
				SecondaryContactIDs: []uint{2, 3},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildView(tt.primary, tt.cluster)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildView_MissingPrimary(t *testing.T) {
	_, err := BuildView(5, []*model.Contact{{ID: 1, LinkPrecedence: model.Primary}})
	assert.ErrorIs(t, err, ErrPrimaryNotInCluster)
}
