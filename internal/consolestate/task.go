package consolestate

import (
	"fmt"
	"time"

	"github.com/davidpdrsn/console-web/internal/instrumentpb"
	"github.com/sirupsen/logrus"
)

type TaskState int

const (
	TaskIdle TaskState = iota
	TaskRunning
	TaskCompleted
)

func (s TaskState) String() string {
	switch s {
	case TaskRunning:
		return "Running"
	case TaskCompleted:
		return "Completed"
	default:
		return "Idle"
	}
}

type TaskStats struct {
	CreatedAt       *time.Time
	DroppedAt       *time.Time
	BusyTime        *time.Duration
	LastPollStarted *time.Duration
	LastPollEnded   *time.Duration
	Polls           uint64
}

// IdleTime is elapsed(created_at) - busy_time, only defined when both are
// present.
func (s *TaskStats) IdleTime() (time.Duration, bool) {
	if s == nil || s.CreatedAt == nil || s.BusyTime == nil {
		return 0, false
	}
	return time.Since(*s.CreatedAt) - *s.BusyTime, true
}

type Task struct {
	ID         TaskId
	Fields     *OrderedMap[fieldKey, FieldValue]
	Location   Location
	Stats      *TaskStats
	MetadataID MetaId
	Target     *string
}

// fieldKey is the string key field names are stored under in an
// OrderedMap, iterated in lexical order: fields are looked up by exact name
// far more often than iterated, so a plain map with a sorted-names helper
// would do just as well, but keeping the same OrderedMap machinery as
// tasks/resources avoids a second ordered-collection implementation.
type fieldKey = string

// NewTaskFields creates the field-name ordered map used by Task.Fields.
func NewTaskFields() *OrderedMap[fieldKey, FieldValue] {
	return NewOrderedMap[fieldKey, FieldValue]()
}

// Name looks up "task.name" in fields, returning the string for Debug/Str
// variants only.
func (t *Task) Name() (string, bool) {
	if t.Fields == nil {
		return "", false
	}
	v, ok := t.Fields.Get("task.name")
	if !ok {
		return "", false
	}
	return v.AsString()
}

func (t *Task) State() TaskState {
	if t.Stats != nil && t.Stats.DroppedAt != nil {
		return TaskCompleted
	}
	if t.isRunning() {
		return TaskRunning
	}
	return TaskIdle
}

func (t *Task) isRunning() bool {
	if t.Stats == nil || t.Stats.LastPollStarted == nil || t.Stats.LastPollEnded == nil {
		return false
	}
	return *t.Stats.LastPollStarted > *t.Stats.LastPollEnded
}

// IdleTime is elapsed(created_at) - busy_time, only defined when both are
// present on the task's stats.
func (t *Task) IdleTime() (time.Duration, bool) {
	return t.Stats.IdleTime()
}

// TaskFromWire converts a wire Task into the entity model, applying the
// cargo-registry path rewrite and surfacing missing-required-field errors.
func TaskFromWire(w *instrumentpb.Task) (*Task, error) {
	if w.Id == nil {
		return nil, fmt.Errorf("task: missing `id` field")
	}
	if w.Metadata == nil {
		return nil, fmt.Errorf("task: missing `metadata` field")
	}
	if w.Location == nil {
		return nil, fmt.Errorf("task: missing `location` field")
	}

	location, err := locationFromWire(w.Location)
	if err != nil {
		return nil, fmt.Errorf("task: %w", err)
	}

	fields := NewTaskFields()
	for _, f := range w.Fields {
		name, ok := f.Name.(*instrumentpb.Field_StrName)
		if !ok {
			logrus.WithField("error_kind", "field-name-index").Warn("hit NameIdx, dropping field")
			continue
		}
		fields.Set(name.StrName, fieldValueFromWire(f.Value))
	}

	return &Task{
		ID:         TaskId(w.Id.Id),
		Fields:     fields,
		Location:   location,
		Stats:      nil,
		MetadataID: MetaId(w.Metadata.Id),
		Target:     nil,
	}, nil
}

func fieldValueFromWire(v any) FieldValue {
	switch val := v.(type) {
	case *instrumentpb.Field_DebugVal:
		return DebugValue(val.DebugVal)
	case *instrumentpb.Field_StrVal:
		return StrValue(val.StrVal)
	case *instrumentpb.Field_U64Val:
		return U64Value(val.U64Val)
	case *instrumentpb.Field_I64Val:
		return I64Value(val.I64Val)
	case *instrumentpb.Field_BoolVal:
		return BoolValue(val.BoolVal)
	default:
		return StrValue("")
	}
}

func locationFromWire(w *instrumentpb.Location) (Location, error) {
	if w.File == nil {
		return Location{}, fmt.Errorf("missing `file` field")
	}
	if w.Line == nil {
		return Location{}, fmt.Errorf("missing `line` field")
	}
	if w.Column == nil {
		return Location{}, fmt.Errorf("missing `column` field")
	}
	return Location{
		File:       truncateRegistryPath(*w.File),
		ModulePath: w.ModulePath,
		Line:       *w.Line,
		Column:     *w.Column,
	}, nil
}

// TaskStatsFromWire converts a wire TaskStats payload.
func TaskStatsFromWire(w *instrumentpb.TaskStats) (*TaskStats, error) {
	if w.PollStats == nil {
		return nil, fmt.Errorf("task stats: missing `poll_stats` field")
	}

	return &TaskStats{
		CreatedAt:       timeFromWire(w.CreatedAt),
		DroppedAt:       timeFromWire(w.DroppedAt),
		BusyTime:        durationFromWire(w.PollStats.BusyTime),
		LastPollStarted: durationFromWire(w.PollStats.LastPollStarted),
		LastPollEnded:   durationFromWire(w.PollStats.LastPollEnded),
		Polls:           w.PollStats.Polls,
	}, nil
}
