package reconciler

import (
	"context"

	"github.com/looplab/fsm"
	"k8s.io/klog/v2"

	"kpt.dev/appsync/pkg/api/appsync/v1alpha1"
)

// Lifecycle states of an application.
const (
	stateIdle     = "Idle"
	stateSyncing  = "Syncing"
	stateHealthy  = "Healthy"
	stateDegraded = "Degraded"
	stateError    = "Error"
)

// Lifecycle events.
const (
	eventStart   = "start"
	eventSucceed = "succeed"
	eventDegrade = "degrade"
	eventFail    = "fail"
	eventSettle  = "settle"
)

// lifecycle is the state machine of one application:
//
//	Idle -> Syncing -> {Healthy, Degraded, Error} -> Idle
//
// Only one cycle may be Syncing at a time, since start is only valid from
// Idle.
type lifecycle struct {
	app     string
	machine *fsm.FSM
}

func newLifecycle(app string, onPhase func(v1alpha1.Phase)) *lifecycle {
	l := &lifecycle{app: app}
	l.machine = fsm.NewFSM(
		stateIdle,
		fsm.Events{
			{Name: eventStart, Src: []string{stateIdle}, Dst: stateSyncing},
			{Name: eventSucceed, Src: []string{stateSyncing}, Dst: stateHealthy},
			{Name: eventDegrade, Src: []string{stateSyncing}, Dst: stateDegraded},
			{Name: eventFail, Src: []string{stateSyncing}, Dst: stateError},
			{Name: eventSettle, Src: []string{stateHealthy, stateDegraded, stateError}, Dst: stateIdle},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				klog.V(2).Infof("Application %s: %s -> %s", app, e.Src, e.Dst)
			},
			"enter_" + stateSyncing: func(_ context.Context, _ *fsm.Event) {
				if onPhase != nil {
					onPhase(v1alpha1.PhaseSyncing)
				}
			},
			"enter_" + stateIdle: func(_ context.Context, _ *fsm.Event) {
				if onPhase != nil {
					onPhase(v1alpha1.PhaseIdle)
				}
			},
		},
	)
	return l
}

// start moves the application to Syncing. Returns ErrSyncInProgress if a
// cycle is already running.
func (l *lifecycle) start(ctx context.Context) error {
	if err := l.machine.Event(ctx, eventStart); err != nil {
		klog.V(4).Infof("Application %s cannot start a cycle: %v", l.app, err)
		return ErrSyncInProgress
	}
	return nil
}

// finish records the outcome of the running cycle and returns to Idle.
func (l *lifecycle) finish(ctx context.Context, health v1alpha1.Health) {
	event := eventFail
	switch health {
	case v1alpha1.HealthHealthy:
		event = eventSucceed
	case v1alpha1.HealthDegraded:
		event = eventDegrade
	}
	if err := l.machine.Event(ctx, event); err != nil {
		klog.Errorf("Application %s: unable to record outcome %s: %v", l.app, health, err)
	}
	if err := l.machine.Event(ctx, eventSettle); err != nil {
		klog.Errorf("Application %s: unable to return to %s: %v", l.app, stateIdle, err)
	}
}

// syncing returns true while a cycle is running.
func (l *lifecycle) syncing() bool {
	return l.machine.Current() != stateIdle
}
