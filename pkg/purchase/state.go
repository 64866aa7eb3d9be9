package purchase

// SDKState tracks billing SDK setup and catalog refresh.
type SDKState int

const (
	SDKNotSetup SDKState = iota
	SDKSettingUp
	SDKSetUp
	SDKSetupFailed
	SDKFetching
	SDKFetched
	SDKFetchFailed
)

var sdkStateNames = [...]string{
	SDKNotSetup:    "not_setup",
	SDKSettingUp:   "setting_up",
	SDKSetUp:       "set_up",
	SDKSetupFailed: "setup_failed",
	SDKFetching:    "fetching",
	SDKFetched:     "fetched",
	SDKFetchFailed: "fetch_failed",
}

func (s SDKState) String() string {
	if s < 0 || int(s) >= len(sdkStateNames) {
		return "unknown"
	}
	return sdkStateNames[s]
}

// FlowState is the state of the visible purchase flow.
type FlowState int

const (
	FlowIdle FlowState = iota
	FlowPurchaseStart
	FlowServerPurchaseStart
	FlowServerPurchaseFailed
	FlowConsumeStart
	FlowConsumeFailed
)

var flowStateNames = [...]string{
	FlowIdle:                 "idle",
	FlowPurchaseStart:        "purchase_start",
	FlowServerPurchaseStart:  "server_purchase_start",
	FlowServerPurchaseFailed: "server_purchase_failed",
	FlowConsumeStart:         "consume_start",
	FlowConsumeFailed:        "consume_failed",
}

func (s FlowState) String() string {
	if s < 0 || int(s) >= len(flowStateNames) {
		return "unknown"
	}
	return flowStateNames[s]
}

// InProgress reports whether a remote stage is outstanding.
func (s FlowState) InProgress() bool {
	switch s {
	case FlowPurchaseStart, FlowServerPurchaseStart, FlowConsumeStart:
		return true
	default:
		return false
	}
}
