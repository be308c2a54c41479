package orchestrator

import (
	"context"

	"github.com/looplab/fsm"
	"go.uber.org/zap"
)

const (
	StateIdle             = "idle"
	StateValidated        = "validated"
	StateUploaded         = "uploaded"
	StateDeployed         = "deployed"
	StateOldestTerminated = "oldest_terminated"
	StateVersionConfirmed = "version_confirmed"
	StatePromoted         = "promoted"
	StateDone             = "done"
	StateFailed           = "failed"
)

const (
	EventValidate  = "validate"
	EventUpload    = "upload"
	EventDeploy    = "deploy"
	EventTerminate = "terminate"
	EventConfirm   = "confirm"
	EventPromote   = "promote"
	EventFinish    = "finish"
	EventFail      = "fail"
)

// newMachine builds the progression of a single run. Each stage can only be
// entered once the stages it depends on have completed; failed and done are
// terminal.
func newMachine(logger *zap.Logger) *fsm.FSM {
	return fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: EventValidate, Src: []string{StateIdle}, Dst: StateValidated},
			{Name: EventUpload, Src: []string{StateValidated}, Dst: StateUploaded},
			{Name: EventDeploy, Src: []string{StateUploaded}, Dst: StateDeployed},
			{Name: EventTerminate, Src: []string{StateDeployed}, Dst: StateOldestTerminated},
			{Name: EventConfirm, Src: []string{StateDeployed, StateOldestTerminated}, Dst: StateVersionConfirmed},
			{Name: EventPromote, Src: []string{StateVersionConfirmed}, Dst: StatePromoted},
			{Name: EventFinish, Src: []string{StateUploaded, StateVersionConfirmed, StatePromoted}, Dst: StateDone},
			{Name: EventFail, Src: []string{
				StateIdle, StateValidated, StateUploaded, StateDeployed,
				StateOldestTerminated, StateVersionConfirmed, StatePromoted,
			}, Dst: StateFailed},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				logger.Debug("run state changed",
					zap.String("event", e.Event),
					zap.String("from", e.Src),
					zap.String("to", e.Dst))
			},
		},
	)
}
