package purchase

// trigger moves the flow between states.
type trigger string

const (
	trigInitiate      trigger = "initiate"
	trigClientSuccess trigger = "client_success"
	trigClientFailed  trigger = "client_failed"
	trigCancelled     trigger = "cancelled"
	trigGranted       trigger = "granted"
	trigGrantFailed   trigger = "grant_failed"
	trigConsumed      trigger = "consumed"
	trigConsumeFailed trigger = "consume_failed"
	trigRetryGrant    trigger = "retry_grant"
	trigRetryConsume  trigger = "retry_consume"
)

type transition struct {
	from FlowState
	on   trigger
	to   FlowState
}

var flowTransitions = []transition{
	{FlowIdle, trigInitiate, FlowPurchaseStart},
	{FlowServerPurchaseFailed, trigInitiate, FlowPurchaseStart},
	{FlowConsumeFailed, trigInitiate, FlowPurchaseStart},

	{FlowPurchaseStart, trigClientSuccess, FlowServerPurchaseStart},
	{FlowPurchaseStart, trigClientFailed, FlowIdle},
	{FlowPurchaseStart, trigCancelled, FlowIdle},

	{FlowServerPurchaseStart, trigGranted, FlowConsumeStart},
	{FlowServerPurchaseStart, trigGrantFailed, FlowServerPurchaseFailed},

	{FlowConsumeStart, trigConsumed, FlowIdle},
	{FlowConsumeStart, trigConsumeFailed, FlowConsumeFailed},

	{FlowServerPurchaseFailed, trigRetryGrant, FlowServerPurchaseStart},
	{FlowConsumeFailed, trigRetryConsume, FlowConsumeStart},
}

// flowMachine is the purchase flow state machine. It is not safe for
// concurrent use; the Controller mutex guards it.
type flowMachine struct {
	current FlowState
	table   map[FlowState]map[trigger]FlowState
}

func newFlowMachine() *flowMachine {
	m := &flowMachine{
		current: FlowIdle,
		table:   make(map[FlowState]map[trigger]FlowState),
	}
	for _, t := range flowTransitions {
		if _, ok := m.table[t.from]; !ok {
			m.table[t.from] = make(map[trigger]FlowState)
		}
		m.table[t.from][t.on] = t.to
	}
	return m
}

func (m *flowMachine) can(t trigger) bool {
	_, ok := m.table[m.current][t]
	return ok
}

func (m *flowMachine) fire(t trigger) error {
	to, ok := m.table[m.current][t]
	if !ok {
		return &ErrNoTransition{State: m.current, Trigger: string(t)}
	}
	m.current = to
	return nil
}
