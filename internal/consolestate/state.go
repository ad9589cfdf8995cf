// Package consolestate holds the entity model for one upstream server's
// current view (tasks, resources, metadata) and the conversions from the
// wire delta shape into it. It has no knowledge of gRPC, registries, or
// broadcasting -- those live in sibling packages layered on top.
package consolestate

// ConsoleState is the reducer's accumulated snapshot of one upstream
// server, as described by spec section 3.
type ConsoleState struct {
	Tasks     *OrderedMap[TaskId, *Task]
	Resources *OrderedMap[ResourceId, *Resource]
	Metadata  map[MetaId]*Metadata
}

// New returns an empty snapshot, the seed value every subscription starts
// from.
func New() *ConsoleState {
	return &ConsoleState{
		Tasks:     NewOrderedMap[TaskId, *Task](),
		Resources: NewOrderedMap[ResourceId, *Resource](),
		Metadata:  make(map[MetaId]*Metadata),
	}
}

// Clone returns a new ConsoleState value with independent backing maps.
// Task and Resource values themselves are shared by pointer: the reducer
// never mutates one in place once it has been inserted, it always builds
// a replacement, so sharing is safe and keeps Clone cheap -- this is what
// makes published snapshots value-typed per invariant I4.
func (s *ConsoleState) Clone() *ConsoleState {
	metadata := make(map[MetaId]*Metadata, len(s.Metadata))
	for k, v := range s.Metadata {
		metadata[k] = v
	}
	return &ConsoleState{
		Tasks:     s.Tasks.Clone(),
		Resources: s.Resources.Clone(),
		Metadata:  metadata,
	}
}
