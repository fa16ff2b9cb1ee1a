package execreg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillhq/planrunner/runtime/agent/env"
	"github.com/quillhq/planrunner/runtime/agent/plan"
	"github.com/quillhq/planrunner/runtime/agent/stream"
)

func samplePlan() *plan.Plan {
	return &plan.Plan{
		MaxIterations: 5,
		Steps: []plan.Step{
			{ID: "T1", Type: plan.KindTool, ToolName: "get_current_time", OutputName: "current_time"},
			{ID: "END", Type: plan.KindEnd},
		},
	}
}

func TestCreateGet(t *testing.T) {
	reg := New(Options{})
	rec := reg.Create(samplePlan(), "what time is it", env.New())

	got, ok := reg.Get(rec.ID)
	require.True(t, ok)
	assert.Equal(t, StatusStarting, got.Status())
}

func TestGetUnknown(t *testing.T) {
	reg := New(Options{})
	_, ok := reg.Get("does-not-exist")
	assert.False(t, ok)
}

func TestPublishFansOutAndReplays(t *testing.T) {
	reg := New(Options{})
	rec := reg.Create(samplePlan(), "q", env.New())

	reg.Publish(rec.ID, stream.ExecutionStarted{StartedAt: time.Now()})

	replay, live, detach, err := reg.AttachSubscriber(rec.ID)
	require.NoError(t, err)
	defer detach()
	require.Len(t, replay, 1)

	reg.Publish(rec.ID, stream.StepStarted{StepID: "T1", StepType: "tool"})

	select {
	case ev := <-live:
		assert.Equal(t, stream.EventStepStarted, ev.Type())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for live event")
	}
}

func TestAttachSubscriberUnknownExecution(t *testing.T) {
	reg := New(Options{})
	_, _, _, err := reg.AttachSubscriber("nope")
	assert.Error(t, err)
}

func TestSlowSubscriberIsDroppedNotBlocked(t *testing.T) {
	reg := New(Options{SubscriberBuffer: 1})
	rec := reg.Create(samplePlan(), "q", env.New())

	_, live, _, err := reg.AttachSubscriber(rec.ID)
	require.NoError(t, err)

	reg.Publish(rec.ID, stream.StepStarted{StepID: "T1"})
	reg.Publish(rec.ID, stream.StepStarted{StepID: "T2"})
	reg.Publish(rec.ID, stream.StepStarted{StepID: "T3"})

	// The event that fit in the buffer is still delivered before the close.
	first, open := <-live
	require.True(t, open)
	assert.Equal(t, "T1", first.(stream.StepStarted).StepID)

	_, open = <-live
	assert.False(t, open, "subscriber channel should be closed after being dropped for a full buffer")
}

func TestTerminateIsIdempotent(t *testing.T) {
	reg := New(Options{})
	rec := reg.Create(samplePlan(), "q", env.New())

	result := "42"
	reg.Terminate(rec.ID, StatusCompleted, stream.ExecutionCompleted{Result: result, FinishedAt: time.Now()}, &result, "")
	reg.Terminate(rec.ID, StatusFailed, stream.ExecutionFailed{Reason: "should not apply"}, nil, "boom")

	snap := rec.Snapshot()
	assert.Equal(t, StatusCompleted, snap.Status)
	require.NotNil(t, snap.FinalResult)
	assert.Equal(t, "42", *snap.FinalResult)
}

func TestSweepExpiredEvictsOnlyAfterGrace(t *testing.T) {
	reg := New(Options{Grace: time.Minute})
	rec := reg.Create(samplePlan(), "q", env.New())
	reg.Terminate(rec.ID, StatusStopped, stream.ExecutionStopped{FinishedAt: time.Now()}, nil, "")

	evicted := reg.SweepExpired(time.Now())
	assert.Empty(t, evicted)

	evicted = reg.SweepExpired(time.Now().Add(2 * time.Minute))
	assert.Equal(t, []string{rec.ID}, evicted)

	_, ok := reg.Get(rec.ID)
	assert.False(t, ok)
}

func TestShutdownCancelsNonTerminalExecutions(t *testing.T) {
	reg := New(Options{})
	rec := reg.Create(samplePlan(), "q", env.New())

	reg.Shutdown()

	select {
	case <-rec.Context().Done():
	default:
		t.Fatal("expected context to be cancelled after Shutdown")
	}
}
