package orchestrator

import "github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/xerrors"

// State 编排状态
type State string

const (
	StateValidating      State = "VALIDATING"
	StateFraudCheck      State = "FRAUD_CHECK"
	StateComplianceCheck State = "COMPLIANCE_CHECK"
	StateRouting         State = "ROUTING"
	StateAttempting      State = "ATTEMPTING"
	StateSucceeded       State = "SUCCEEDED"
	StateAllFailed       State = "ALL_FAILED"
	StateRejected        State = "REJECTED"
)

// Terminal 是否为终止状态
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateAllFailed || s == StateRejected
}

// Event 驱动状态转换的事件
type Event string

const (
	EventValidated     Event = "validated"
	EventPassed        Event = "passed"
	EventRejected      Event = "rejected"
	EventRouted        Event = "routed"
	EventNoCandidates  Event = "no_candidates"
	EventResolved      Event = "resolved" // 退款：已确定原交易的提供方
	EventNextCandidate Event = "next_candidate"
	EventSucceeded     Event = "succeeded"
	EventHalted        Event = "halted" // 永久失败或熔断，停止一切尝试
	EventExhausted     Event = "exhausted"
)

// ErrIllegalTransition 状态机收到当前状态不接受的事件
var ErrIllegalTransition = xerrors.New("orchestrator: illegal state transition")

var transitions = map[State]map[Event]State{
	StateValidating: {
		EventValidated: StateFraudCheck,
		EventResolved:  StateAttempting,
		EventRejected:  StateRejected,
	},
	StateFraudCheck: {
		EventPassed:   StateComplianceCheck,
		EventRejected: StateRejected,
	},
	StateComplianceCheck: {
		EventPassed:   StateRouting,
		EventRejected: StateRejected,
	},
	StateRouting: {
		EventRouted:       StateAttempting,
		EventNoCandidates: StateAllFailed,
	},
	StateAttempting: {
		EventNextCandidate: StateAttempting,
		EventSucceeded:     StateSucceeded,
		EventHalted:        StateAllFailed,
		EventExhausted:     StateAllFailed,
	},
}

// next 状态转换函数
func next(s State, e Event) (State, error) {
	if to, ok := transitions[s][e]; ok {
		return to, nil
	}
	return s, xerrors.Wrapf(ErrIllegalTransition, "%s --%s-->", s, e)
}
