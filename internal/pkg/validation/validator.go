package validation

import (
	"errors"
	"regexp"
	"strings"

	"github.com/Vodeneev/matchscraper/internal/pkg/failure"
	"github.com/Vodeneev/matchscraper/internal/pkg/models"
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Validator rejects extraction output that cannot become a canonical record
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateBundle checks the fields a canonical record cannot be built without.
// Failures are returned as *failure.ValidationError.
func (v *Validator) ValidateBundle(bundle *models.RawFragmentBundle) error {
	if bundle == nil {
		return &failure.ValidationError{Field: "bundle", Reason: "is nil"}
	}
	itemID := bundle.ItemID

	if strings.TrimSpace(itemID) == "" {
		return &failure.ValidationError{Field: "item_id", Reason: "is empty"}
	}
	if !v.isValidID(itemID) {
		return &failure.ValidationError{ItemID: itemID, Field: "item_id", Reason: "has invalid format"}
	}

	// One missing side is tolerated; the record keeps a null reference for it.
	if bundle.Home.ID == "" && bundle.Away.ID == "" {
		return &failure.ValidationError{ItemID: itemID, Field: "team_ids", Reason: "both missing"}
	}
	for _, team := range []models.RawTeam{bundle.Home, bundle.Away} {
		if team.ID == "" {
			continue
		}
		if err := v.ValidateTeam(models.Team{ID: team.ID, Name: team.Name}); err != nil {
			var verr *failure.ValidationError
			if errors.As(err, &verr) {
				verr.ItemID = itemID
			}
			return err
		}
	}

	if strings.TrimSpace(bundle.Date) == "" {
		return &failure.ValidationError{ItemID: itemID, Field: "date", Reason: "missing"}
	}

	return nil
}

// ValidateTeam checks a team reference before it is upserted.
func (v *Validator) ValidateTeam(team models.Team) error {
	if team.ID == "" {
		return &failure.ValidationError{Field: "team_id", Reason: "is empty"}
	}
	if !v.isValidID(team.ID) {
		return &failure.ValidationError{ItemID: team.ID, Field: "team_id", Reason: "has invalid format"}
	}
	return nil
}

func (v *Validator) isValidID(id string) bool {
	return len(id) <= 100 && idPattern.MatchString(id)
}
