package consolestate

import "fmt"

// TaskId, ResourceId and MetaId are newtypes over the upstream's raw u64
// ids. Keeping them distinct types prevents accidentally indexing the
// tasks map with a resource id or vice versa.
type TaskId uint64

func (id TaskId) String() string { return fmt.Sprintf("%d", uint64(id)) }

type ResourceId uint64

func (id ResourceId) String() string { return fmt.Sprintf("%d", uint64(id)) }

type MetaId uint64

func (id MetaId) String() string { return fmt.Sprintf("%d", uint64(id)) }
