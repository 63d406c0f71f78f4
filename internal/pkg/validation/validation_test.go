package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vodeneev/matchscraper/internal/pkg/failure"
	"github.com/Vodeneev/matchscraper/internal/pkg/models"
)

func TestValidateBundle(t *testing.T) {
	valid := func() *models.RawFragmentBundle {
		return &models.RawFragmentBundle{
			ItemID: "AbC123xy",
			Date:   "14.09.2024 17:30",
			Home:   models.RawTeam{ID: "h0me1234", Name: "Home"},
			Away:   models.RawTeam{ID: "aw4y1234", Name: "Away"},
		}
	}

	tests := []struct {
		name      string
		mutate    func(b *models.RawFragmentBundle)
		wantField string
	}{
		{name: "valid", mutate: func(*models.RawFragmentBundle) {}},
		{name: "one team id missing is accepted", mutate: func(b *models.RawFragmentBundle) { b.Away.ID = "" }},
		{name: "both team ids missing", mutate: func(b *models.RawFragmentBundle) { b.Home.ID, b.Away.ID = "", "" }, wantField: "team_ids"},
		{name: "date missing", mutate: func(b *models.RawFragmentBundle) { b.Date = "  " }, wantField: "date"},
		{name: "empty item id", mutate: func(b *models.RawFragmentBundle) { b.ItemID = "" }, wantField: "item_id"},
		{name: "bad item id", mutate: func(b *models.RawFragmentBundle) { b.ItemID = "a/b" }, wantField: "item_id"},
		{name: "bad team id", mutate: func(b *models.RawFragmentBundle) { b.Home.ID = "x/y" }, wantField: "team_id"},
	}

	v := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := valid()
			tt.mutate(b)
			err := v.ValidateBundle(b)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var verr *failure.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.wantField, verr.Field)
			assert.Equal(t, failure.KindValidation, failure.Classify(err))
		})
	}
}

func TestSanitizeBundle(t *testing.T) {
	b := &models.RawFragmentBundle{
		ItemID: " AbC123xy ",
		Home:   models.RawTeam{ID: "h0me1234", Name: "  Real \t Madrid "},
		Incidents: []models.RawIncident{
			{Description: "45'\n\n  Vinicius   Junior \n(Bellingham)"},
		},
		OddsRows: []models.RawOddsRow{{Handicap: " 2.5 ", Bookmaker: " bet365 ", Over: "1.90\n"}},
	}

	NewSanitizer().SanitizeBundle(b)

	assert.Equal(t, "AbC123xy", b.ItemID)
	assert.Equal(t, "Real Madrid", b.Home.Name)
	assert.Equal(t, "45'\nVinicius Junior\n(Bellingham)", b.Incidents[0].Description)
	assert.Equal(t, "2.5", b.OddsRows[0].Handicap)
	assert.Equal(t, "bet365", b.OddsRows[0].Bookmaker)
	assert.Equal(t, "1.90", b.OddsRows[0].Over)
	assert.Empty(t, b.Away.ID)
}
