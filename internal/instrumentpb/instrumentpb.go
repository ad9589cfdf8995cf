// Package instrumentpb holds the generated-style message and client stubs
// for the instrument.Instrument/WatchUpdates streaming RPC. These types
// mirror the shape of the upstream instrument messages as far as the
// reducer consumes them (spec section 6, "External interfaces"); they are
// carried over the wire as JSON by the codec in codec.go, not as
// protobuf.
package instrumentpb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// TaskId, ResourceId and MetaId are wrapper messages, not bare scalars, so
// that "id field present but zero" and "id field absent" are distinguishable
// on the wire -- the reducer's conversion errors depend on that distinction.
type TaskId struct {
	Id uint64
}

type ResourceId struct {
	Id uint64
}

type MetaId struct {
	Id uint64
}

// Location describes where a task or resource was instrumented.
type Location struct {
	File       *string
	ModulePath *string
	Line       *uint32
	Column     *uint32
}

// Field is a single named attribute attached to a task or resource.
// Name and Value are both oneofs, matching how protoc-gen-go renders them.
type Field struct {
	Name  isField_Name
	Value isField_Value
}

type isField_Name interface{ isField_Name() }
type isField_Value interface{ isField_Value() }

type Field_StrName struct{ StrName string }
type Field_NameIdx struct{ NameIdx uint64 }

func (*Field_StrName) isField_Name() {}
func (*Field_NameIdx) isField_Name() {}

type Field_DebugVal struct{ DebugVal string }
type Field_StrVal struct{ StrVal string }
type Field_U64Val struct{ U64Val uint64 }
type Field_I64Val struct{ I64Val int64 }
type Field_BoolVal struct{ BoolVal bool }

func (*Field_DebugVal) isField_Value() {}
func (*Field_StrVal) isField_Value()   {}
func (*Field_U64Val) isField_Value()   {}
func (*Field_I64Val) isField_Value()   {}
func (*Field_BoolVal) isField_Value()  {}

// Task is one row of task.new_tasks in a delta.
type Task struct {
	Id       *TaskId
	Metadata *MetaId
	Fields   []*Field
	Location *Location
}

// TaskPollStats carries the poll-accounting numbers nested under TaskStats.
type TaskPollStats struct {
	Polls           uint64
	BusyTime        *durationpb.Duration
	LastPollStarted *durationpb.Duration
	LastPollEnded   *durationpb.Duration
}

// TaskStats is the stats_update payload for a single task id.
type TaskStats struct {
	CreatedAt *timestamppb.Timestamp
	DroppedAt *timestamppb.Timestamp
	PollStats *TaskPollStats
}

// TaskUpdate is the task_update sub-message of an Update.
type TaskUpdate struct {
	NewTasks    []*Task
	StatsUpdate map[uint64]*TaskStats
}

// ResourceKnownKind enumerates the well-known resource kinds. Anything else
// arrives as ResourceKind_Other.
type ResourceKnownKind int32

const (
	ResourceKnownKindTimer ResourceKnownKind = 0
)

type ResourceKind struct {
	Kind isResourceKind_Kind
}

type isResourceKind_Kind interface{ isResourceKind_Kind() }

type ResourceKind_Known struct{ Known ResourceKnownKind }
type ResourceKind_Other struct{ Other string }

func (*ResourceKind_Known) isResourceKind_Kind() {}
func (*ResourceKind_Other) isResourceKind_Kind() {}

// Resource is one row of resource.new_resources in a delta.
type Resource struct {
	Id               *ResourceId
	Metadata         *MetaId
	Kind             *ResourceKind
	IsInternal       bool
	ParentResourceId *ResourceId
	ConcreteType     string
	Location         *Location
}

// ResourceStats is the stats_update payload for a single resource id.
type ResourceStats struct {
	CreatedAt *timestamppb.Timestamp
	DroppedAt *timestamppb.Timestamp
}

// ResourceUpdate is the resource_update sub-message of an Update.
type ResourceUpdate struct {
	NewResources []*Resource
	StatsUpdate  map[uint64]*ResourceStats
}

// Metadata is the (name, target) pair a MetaId resolves to.
type Metadata struct {
	Name   string
	Target string
}

// NewMetadata is one row of new_metadata in a delta.
type NewMetadata struct {
	Id       *MetaId
	Metadata *Metadata
}

// Update is a single message on the WatchUpdates stream. TaskUpdate and
// ResourceUpdate are pointers so their absence is observable; other fields
// the wire schema carries (parent links, poll ops, dropped-event counters,
// async-op updates) are not modeled here because the reducer ignores them.
type Update struct {
	NewMetadata    []*NewMetadata
	TaskUpdate     *TaskUpdate
	ResourceUpdate *ResourceUpdate
}

// InstrumentRequest is the (empty) WatchUpdates request message.
type InstrumentRequest struct{}

const watchUpdatesMethod = "/instrument.Instrument/WatchUpdates"

// Instrument_WatchUpdatesClient is the server-streaming client handle
// returned by WatchUpdates.
type Instrument_WatchUpdatesClient interface {
	Recv() (*Update, error)
	grpc.ClientStream
}

type instrumentWatchUpdatesClient struct {
	grpc.ClientStream
}

func (x *instrumentWatchUpdatesClient) Recv() (*Update, error) {
	m := new(Update)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// InstrumentClient is the subset of the generated Instrument service client
// this repository depends on.
type InstrumentClient interface {
	WatchUpdates(ctx context.Context, in *InstrumentRequest, opts ...grpc.CallOption) (Instrument_WatchUpdatesClient, error)
}

type instrumentClient struct {
	cc grpc.ClientConnInterface
}

// NewInstrumentClient wraps an established channel in the Instrument client.
func NewInstrumentClient(cc grpc.ClientConnInterface) InstrumentClient {
	return &instrumentClient{cc}
}

func (c *instrumentClient) WatchUpdates(ctx context.Context, in *InstrumentRequest, opts ...grpc.CallOption) (Instrument_WatchUpdatesClient, error) {
	stream, err := c.cc.NewStream(ctx, &instrumentServiceStreamDesc, watchUpdatesMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &instrumentWatchUpdatesClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

var instrumentServiceStreamDesc = grpc.StreamDesc{
	StreamName:    "WatchUpdates",
	ServerStreams: true,
}

// IsUnavailable reports whether err is a gRPC status indicating the upstream
// connection dropped, as opposed to an application-level rejection.
func IsUnavailable(err error) bool {
	st, ok := status.FromError(err)
	return ok && (st.Code() == codes.Unavailable || st.Code() == codes.DeadlineExceeded)
}
