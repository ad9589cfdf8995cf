package consolestate

import (
	"testing"
	"time"

	"github.com/davidpdrsn/console-web/internal/instrumentpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/timestamppb"
)

func strPtr(s string) *string { return &s }
func u32Ptr(u uint32) *uint32 { return &u }

func wireTask(id uint64, metaID uint64, file string, line, col uint32) *instrumentpb.Task {
	return &instrumentpb.Task{
		Id:       &instrumentpb.TaskId{Id: id},
		Metadata: &instrumentpb.MetaId{Id: metaID},
		Location: &instrumentpb.Location{File: strPtr(file), Line: u32Ptr(line), Column: u32Ptr(col)},
		Fields: []*instrumentpb.Field{
			{Name: &instrumentpb.Field_StrName{StrName: "task.name"}, Value: &instrumentpb.Field_StrVal{StrVal: "worker"}},
		},
	}
}

func TestTaskFromWire_MissingID(t *testing.T) {
	w := wireTask(1, 7, "src/x.rs", 10, 2)
	w.Id = nil
	_, err := TaskFromWire(w)
	require.Error(t, err)
}

func TestTaskFromWire_MissingLocationFields(t *testing.T) {
	w := wireTask(1, 7, "src/x.rs", 10, 2)
	w.Location.Line = nil
	_, err := TaskFromWire(w)
	require.Error(t, err)
}

func TestTaskFromWire_Name(t *testing.T) {
	w := wireTask(1, 7, "src/x.rs", 10, 2)
	task, err := TaskFromWire(w)
	require.NoError(t, err)

	name, ok := task.Name()
	assert.True(t, ok)
	assert.Equal(t, "worker", name)
}

func TestTaskFromWire_DropsIndexedFieldName(t *testing.T) {
	w := wireTask(1, 7, "src/x.rs", 10, 2)
	w.Fields = append(w.Fields, &instrumentpb.Field{
		Name:  &instrumentpb.Field_NameIdx{NameIdx: 3},
		Value: &instrumentpb.Field_U64Val{U64Val: 42},
	})

	task, err := TaskFromWire(w)
	require.NoError(t, err)
	assert.Equal(t, 1, task.Fields.Len())
}

func TestTaskFromWire_RewritesCargoRegistryPath(t *testing.T) {
	w := wireTask(1, 7, "/home/me/.cargo/registry/src/index.crates.io-abcdef/tokio-1.0/src/lib.rs", 10, 2)
	task, err := TaskFromWire(w)
	require.NoError(t, err)
	assert.Equal(t, "{cargo}/tokio-1.0/src/lib.rs", task.Location.File)
}

func TestTaskFromWire_LeavesNonRegistryPathAlone(t *testing.T) {
	w := wireTask(1, 7, "src/main.rs", 10, 2)
	task, err := TaskFromWire(w)
	require.NoError(t, err)
	assert.Equal(t, "src/main.rs", task.Location.File)
}

func TestTaskStatsFromWire_MissingPollStats(t *testing.T) {
	_, err := TaskStatsFromWire(&instrumentpb.TaskStats{})
	require.Error(t, err)
}

func TestTask_State(t *testing.T) {
	now := time.Now()
	started := 2 * time.Second
	ended := 1 * time.Second

	t.Run("idle with no stats", func(t *testing.T) {
		task := &Task{}
		assert.Equal(t, TaskIdle, task.State())
	})

	t.Run("running when last poll started after it ended", func(t *testing.T) {
		task := &Task{Stats: &TaskStats{LastPollStarted: &started, LastPollEnded: &ended}}
		assert.Equal(t, TaskRunning, task.State())
	})

	t.Run("idle when poll ended after it started", func(t *testing.T) {
		task := &Task{Stats: &TaskStats{LastPollStarted: &ended, LastPollEnded: &started}}
		assert.Equal(t, TaskIdle, task.State())
	})

	t.Run("completed once dropped, regardless of poll timestamps", func(t *testing.T) {
		task := &Task{Stats: &TaskStats{DroppedAt: &now, LastPollStarted: &started, LastPollEnded: &ended}}
		assert.Equal(t, TaskCompleted, task.State())
	})
}

func TestTaskStats_IdleTime(t *testing.T) {
	t.Run("undefined without created_at", func(t *testing.T) {
		stats := &TaskStats{}
		_, ok := stats.IdleTime()
		assert.False(t, ok)
	})

	t.Run("undefined without busy_time", func(t *testing.T) {
		now := time.Now()
		stats := &TaskStats{CreatedAt: &now}
		_, ok := stats.IdleTime()
		assert.False(t, ok)
	})

	t.Run("computed when both present", func(t *testing.T) {
		created := time.Now().Add(-10 * time.Second)
		busy := 2 * time.Second
		stats := &TaskStats{CreatedAt: &created, BusyTime: &busy}
		idle, ok := stats.IdleTime()
		require.True(t, ok)
		assert.Greater(t, idle, 7*time.Second)
	})
}

func TestTaskStatsFromWire_Timestamps(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	w := &instrumentpb.TaskStats{
		CreatedAt: timestamppb.New(now),
		PollStats: &instrumentpb.TaskPollStats{Polls: 3},
	}
	stats, err := TaskStatsFromWire(w)
	require.NoError(t, err)
	require.NotNil(t, stats.CreatedAt)
	assert.True(t, stats.CreatedAt.Equal(now))
	assert.Nil(t, stats.DroppedAt)
	assert.Equal(t, uint64(3), stats.Polls)
}
