package consolestate

import (
	"fmt"
	"time"

	"github.com/davidpdrsn/console-web/internal/instrumentpb"
)

type Visibility int

const (
	Public Visibility = iota
	Internal
)

func (v Visibility) String() string {
	if v == Internal {
		return "Internal"
	}
	return "Public"
}

type ResourceStats struct {
	CreatedAt *time.Time
	DroppedAt *time.Time
}

type Resource struct {
	ID           ResourceId
	ParentID     *ResourceId
	MetadataID   MetaId
	Target       *string
	Kind         string
	ConcreteType string
	Vis          Visibility
	Location     *Location
	Stats        *ResourceStats
}

// ResourceFromWire converts a wire Resource into the entity model.
func ResourceFromWire(w *instrumentpb.Resource) (*Resource, error) {
	if w.Id == nil {
		return nil, fmt.Errorf("resource: missing `id` field")
	}
	if w.Metadata == nil {
		return nil, fmt.Errorf("resource: missing `metadata` field")
	}
	if w.Kind == nil || w.Kind.Kind == nil {
		return nil, fmt.Errorf("resource: missing `kind` field")
	}

	kind, err := resourceKindFromWire(w.Kind)
	if err != nil {
		return nil, fmt.Errorf("resource: %w", err)
	}

	vis := Public
	if w.IsInternal {
		vis = Internal
	}

	var parentID *ResourceId
	if w.ParentResourceId != nil {
		id := ResourceId(w.ParentResourceId.Id)
		parentID = &id
	}

	var location *Location
	if w.Location != nil {
		loc, err := locationFromWire(w.Location)
		if err != nil {
			return nil, fmt.Errorf("resource: %w", err)
		}
		location = &loc
	}

	return &Resource{
		ID:           ResourceId(w.Id.Id),
		ParentID:     parentID,
		MetadataID:   MetaId(w.Metadata.Id),
		Target:       nil,
		Kind:         kind,
		ConcreteType: w.ConcreteType,
		Vis:          vis,
		Location:     location,
		Stats:        nil,
	}, nil
}

func resourceKindFromWire(k *instrumentpb.ResourceKind) (string, error) {
	switch kind := k.Kind.(type) {
	case *instrumentpb.ResourceKind_Known:
		switch kind.Known {
		case instrumentpb.ResourceKnownKindTimer:
			return "Timer", nil
		default:
			return "", fmt.Errorf("unknown well-known resource kind %d", kind.Known)
		}
	case *instrumentpb.ResourceKind_Other:
		return kind.Other, nil
	default:
		return "", fmt.Errorf("missing `kind.kind`")
	}
}

// ResourceStatsFromWire converts a wire ResourceStats payload.
func ResourceStatsFromWire(w *instrumentpb.ResourceStats) (*ResourceStats, error) {
	return &ResourceStats{
		CreatedAt: timeFromWire(w.CreatedAt),
		DroppedAt: timeFromWire(w.DroppedAt),
	}, nil
}
