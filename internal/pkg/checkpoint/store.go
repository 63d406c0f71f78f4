// Package checkpoint persists the orchestrator's resume point.
package checkpoint

import (
	"context"

	"github.com/Vodeneev/matchscraper/internal/pkg/models"
)

// Store keeps at most one checkpoint per run target.
type Store interface {
	// Load returns the saved checkpoint, or nil when there is none.
	Load(ctx context.Context) (*models.Checkpoint, error)
	Save(ctx context.Context, cp models.Checkpoint) error
	// Delete removes the checkpoint; deleting a missing checkpoint is not an error.
	Delete(ctx context.Context) error
}

// Nop never stores anything. Used for runs that must not resume, like backfill.
type Nop struct{}

func (Nop) Load(context.Context) (*models.Checkpoint, error) { return nil, nil }
func (Nop) Save(context.Context, models.Checkpoint) error    { return nil }
func (Nop) Delete(context.Context) error                     { return nil }
