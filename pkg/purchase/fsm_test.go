package purchase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlowMachine(t *testing.T) {
	t.Parallel()

	t.Run("happy path", func(t *testing.T) {
		t.Parallel()

		m := newFlowMachine()
		for _, tr := range []trigger{trigInitiate, trigClientSuccess, trigGranted, trigConsumed} {
			require.NoError(t, m.fire(tr), tr)
		}
		assert.Equal(t, FlowIdle, m.current)
	})

	t.Run("retries", func(t *testing.T) {
		t.Parallel()

		m := newFlowMachine()
		require.NoError(t, m.fire(trigInitiate))
		require.NoError(t, m.fire(trigClientSuccess))
		require.NoError(t, m.fire(trigGrantFailed))
		assert.Equal(t, FlowServerPurchaseFailed, m.current)
		assert.True(t, m.can(trigRetryGrant))
		assert.False(t, m.can(trigRetryConsume))

		require.NoError(t, m.fire(trigRetryGrant))
		require.NoError(t, m.fire(trigGranted))
		require.NoError(t, m.fire(trigConsumeFailed))
		assert.Equal(t, FlowConsumeFailed, m.current)

		require.NoError(t, m.fire(trigRetryConsume))
		assert.Equal(t, FlowConsumeStart, m.current)
	})

	t.Run("rejects invalid triggers", func(t *testing.T) {
		t.Parallel()

		m := newFlowMachine()
		err := m.fire(trigGranted)
		require.Error(t, err)
		assert.True(t, IsNoTransitionError(err))
		assert.Equal(t, FlowIdle, m.current)

		require.NoError(t, m.fire(trigInitiate))
		assert.True(t, IsNoTransitionError(m.fire(trigInitiate)))
		assert.True(t, IsNoTransitionError(m.fire(trigRetryGrant)))
	})

	t.Run("new flow from failed states", func(t *testing.T) {
		t.Parallel()

		for _, from := range []FlowState{FlowServerPurchaseFailed, FlowConsumeFailed} {
			m := newFlowMachine()
			m.current = from
			require.NoError(t, m.fire(trigInitiate))
			assert.Equal(t, FlowPurchaseStart, m.current)
		}
	})
}

func TestStateStrings(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "fetch_failed", SDKFetchFailed.String())
	assert.Equal(t, "server_purchase_failed", FlowServerPurchaseFailed.String())
	assert.Equal(t, "unknown", FlowState(42).String())
	assert.True(t, FlowConsumeStart.InProgress())
	assert.False(t, FlowConsumeFailed.InProgress())
}
