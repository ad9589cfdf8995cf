package consolestate

import (
	"fmt"

	"github.com/davidpdrsn/console-web/internal/instrumentpb"
)

type Metadata struct {
	ID     MetaId
	Name   string
	Target string
}

// MetadataFromWire converts one new_metadata row.
func MetadataFromWire(w *instrumentpb.NewMetadata) (*Metadata, error) {
	if w.Id == nil {
		return nil, fmt.Errorf("metadata: missing `id` field")
	}
	if w.Metadata == nil {
		return nil, fmt.Errorf("metadata: missing `meta` field")
	}
	return &Metadata{
		ID:     MetaId(w.Id.Id),
		Name:   w.Metadata.Name,
		Target: w.Metadata.Target,
	}, nil
}
