package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	t.Run("known statuses parse", func(t *testing.T) {
		for s := range validStatuses {
			got, err := ParseStatus(string(s))
			require.NoError(t, err)
			assert.Equal(t, s, got)
		}
	})

	t.Run("unknown status is rejected", func(t *testing.T) {
		_, err := ParseStatus("graduated")
		assert.Error(t, err)
	})
}

func TestStatusGraph(t *testing.T) {
	t.Run("forward path", func(t *testing.T) {
		path := []Status{
			StatusNew, StatusScreening, StatusRegistered, StatusTraining,
			StatusVisaProcess, StatusReady, StatusDeparted, StatusReturned,
		}
		for i := 0; i < len(path)-1; i++ {
			assert.True(t, path[i].CanTransitionTo(path[i+1]),
				"%s -> %s must be allowed", path[i], path[i+1])
		}
	})

	t.Run("no skipping stages", func(t *testing.T) {
		assert.False(t, StatusNew.CanTransitionTo(StatusRegistered))
		assert.False(t, StatusScreening.CanTransitionTo(StatusTraining))
		assert.False(t, StatusRegistered.CanTransitionTo(StatusVisaProcess))
	})

	t.Run("no backward edges except departed to returned", func(t *testing.T) {
		assert.False(t, StatusScreening.CanTransitionTo(StatusNew))
		assert.False(t, StatusTraining.CanTransitionTo(StatusRegistered))
		assert.True(t, StatusDeparted.CanTransitionTo(StatusReturned))
	})

	t.Run("escape edges stop at visa_process", func(t *testing.T) {
		for _, from := range []Status{StatusNew, StatusScreening, StatusRegistered, StatusTraining, StatusVisaProcess} {
			assert.True(t, from.CanTransitionTo(StatusRejected), "%s must allow rejection", from)
			assert.True(t, from.CanTransitionTo(StatusDropped), "%s must allow dropping", from)
		}
		for _, from := range []Status{StatusReady, StatusDeparted} {
			assert.False(t, from.CanTransitionTo(StatusRejected), "%s must not allow rejection", from)
			assert.False(t, from.CanTransitionTo(StatusDropped), "%s must not allow dropping", from)
		}
	})

	t.Run("terminal statuses have no outgoing edges", func(t *testing.T) {
		for _, terminal := range []Status{StatusReturned, StatusRejected, StatusDropped} {
			assert.True(t, terminal.IsTerminal())
			for other := range validStatuses {
				assert.False(t, terminal.CanTransitionTo(other),
					"%s -> %s must not be allowed", terminal, other)
			}
		}
	})

	t.Run("nothing transitions to new", func(t *testing.T) {
		for from := range validStatuses {
			assert.False(t, from.CanTransitionTo(StatusNew))
		}
	})
}
