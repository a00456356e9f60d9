package parser

import (
	"errors"

	"github.com/maltedev/marketplace-harvester/internal/models"
)

var (
	// ErrNoData is returned when a detail response carries no data object,
	// typically because the marketplace answered with an error envelope.
	ErrNoData = errors.New("response has no data")
	// ErrMappingGap marks a payload missing a field the canonical record needs.
	ErrMappingGap = errors.New("mapping gap")
)

type Parser interface {
	ParseDetail(body []byte, namespace string) (*models.CanonicalRecord, error)
	MapDetail(data []byte, namespace string) (*models.CanonicalRecord, error)
	ParseSearch(body []byte) ([]models.ListingItem, error)
}
