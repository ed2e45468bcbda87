package store

import (
	"context"

	"casetrack/internal/models"
)

// CaseStore abstracts case record storage. Implementations behave like a
// document store: SaveCase is a full-record overwrite keyed by id, there is
// no partial-field update primitive.
type CaseStore interface {
	CaseExists(id string) (bool, error)
	CreateCase(ctx context.Context, c *models.Case) error
	GetCase(ctx context.Context, id string) (*models.Case, error)
	ListCases(ctx context.Context) ([]models.Case, error)
	SaveCase(ctx context.Context, c *models.Case) error
	DeleteCase(ctx context.Context, id string) (bool, error)
}

var _ CaseStore = (*Store)(nil)
