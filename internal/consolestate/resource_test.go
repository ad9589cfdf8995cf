package consolestate

import (
	"testing"

	"github.com/davidpdrsn/console-web/internal/instrumentpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseWireResource() *instrumentpb.Resource {
	return &instrumentpb.Resource{
		Id:           &instrumentpb.ResourceId{Id: 1},
		Metadata:     &instrumentpb.MetaId{Id: 7},
		Kind:         &instrumentpb.ResourceKind{Kind: &instrumentpb.ResourceKind_Known{Known: instrumentpb.ResourceKnownKindTimer}},
		ConcreteType: "tokio::time::Sleep",
	}
}

func TestResourceFromWire_KnownKind(t *testing.T) {
	resource, err := ResourceFromWire(baseWireResource())
	require.NoError(t, err)
	assert.Equal(t, "Timer", resource.Kind)
}

func TestResourceFromWire_OtherKind(t *testing.T) {
	w := baseWireResource()
	w.Kind = &instrumentpb.ResourceKind{Kind: &instrumentpb.ResourceKind_Other{Other: "Mutex"}}

	resource, err := ResourceFromWire(w)
	require.NoError(t, err)
	assert.Equal(t, "Mutex", resource.Kind)
}

func TestResourceFromWire_Visibility(t *testing.T) {
	w := baseWireResource()
	w.IsInternal = true

	resource, err := ResourceFromWire(w)
	require.NoError(t, err)
	assert.Equal(t, Internal, resource.Vis)
}

func TestResourceFromWire_MissingKind(t *testing.T) {
	w := baseWireResource()
	w.Kind = nil
	_, err := ResourceFromWire(w)
	require.Error(t, err)
}

func TestResourceFromWire_MissingID(t *testing.T) {
	w := baseWireResource()
	w.Id = nil
	_, err := ResourceFromWire(w)
	require.Error(t, err)
}

func TestResourceFromWire_ParentID(t *testing.T) {
	w := baseWireResource()
	w.ParentResourceId = &instrumentpb.ResourceId{Id: 99}

	resource, err := ResourceFromWire(w)
	require.NoError(t, err)
	require.NotNil(t, resource.ParentID)
	assert.Equal(t, ResourceId(99), *resource.ParentID)
}
