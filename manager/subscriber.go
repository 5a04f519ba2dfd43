package manager

// Subscriber handles event subscriptions.
type Subscriber struct {
	done chan struct{}

	startedHandler           func(Started)
	bootstrapFailedHandler   func(BootstrapFailed)
	userRegisteredHandler    func(UserRegistered)
	delegationGrantedHandler func(DelegationGranted)
	grantFailedHandler       func(GrantFailed)
	delegationRevokedHandler func(DelegationRevoked)
	revokeFailedHandler      func(RevokeFailed)
	evaluationErrorHandler   func(EvaluationError)
	reconcileRepairedHandler func(ReconcileRepaired)
	reconcileErrorHandler    func(ReconcileError)
	sweepCompletedHandler    func(SweepCompleted)
	powerCheckedHandler      func(PowerChecked)
	powerLowHandler          func(PowerLow)
	powerCheckErrorHandler   func(PowerCheckError)
	rewardsClaimedHandler    func(RewardsClaimed)
	costRefreshedHandler     func(CostRefreshed)
	costRefreshErrorHandler  func(CostRefreshError)
	notifyErrorHandler       func(NotifyError)
	storeErrorHandler        func(StoreError)
	streamStoppedHandler     func(StreamStopped)
	shutdownHandler          func(Shutdown)
}

// OnStarted sets the handler for Started events
func OnStarted(fn func(Started)) func(*Subscriber) {
	return func(s *Subscriber) { s.startedHandler = fn }
}

// OnBootstrapFailed sets the handler for BootstrapFailed events
func OnBootstrapFailed(fn func(BootstrapFailed)) func(*Subscriber) {
	return func(s *Subscriber) { s.bootstrapFailedHandler = fn }
}

// OnUserRegistered sets the handler for UserRegistered events
func OnUserRegistered(fn func(UserRegistered)) func(*Subscriber) {
	return func(s *Subscriber) { s.userRegisteredHandler = fn }
}

// OnDelegationGranted sets the handler for DelegationGranted events
func OnDelegationGranted(fn func(DelegationGranted)) func(*Subscriber) {
	return func(s *Subscriber) { s.delegationGrantedHandler = fn }
}

// OnGrantFailed sets the handler for GrantFailed events
func OnGrantFailed(fn func(GrantFailed)) func(*Subscriber) {
	return func(s *Subscriber) { s.grantFailedHandler = fn }
}

// OnDelegationRevoked sets the handler for DelegationRevoked events
func OnDelegationRevoked(fn func(DelegationRevoked)) func(*Subscriber) {
	return func(s *Subscriber) { s.delegationRevokedHandler = fn }
}

// OnRevokeFailed sets the handler for RevokeFailed events
func OnRevokeFailed(fn func(RevokeFailed)) func(*Subscriber) {
	return func(s *Subscriber) { s.revokeFailedHandler = fn }
}

// OnEvaluationError sets the handler for EvaluationError events
func OnEvaluationError(fn func(EvaluationError)) func(*Subscriber) {
	return func(s *Subscriber) { s.evaluationErrorHandler = fn }
}

// OnReconcileRepaired sets the handler for ReconcileRepaired events
func OnReconcileRepaired(fn func(ReconcileRepaired)) func(*Subscriber) {
	return func(s *Subscriber) { s.reconcileRepairedHandler = fn }
}

// OnReconcileError sets the handler for ReconcileError events
func OnReconcileError(fn func(ReconcileError)) func(*Subscriber) {
	return func(s *Subscriber) { s.reconcileErrorHandler = fn }
}

// OnSweepCompleted sets the handler for SweepCompleted events
func OnSweepCompleted(fn func(SweepCompleted)) func(*Subscriber) {
	return func(s *Subscriber) { s.sweepCompletedHandler = fn }
}

// OnPowerChecked sets the handler for PowerChecked events
func OnPowerChecked(fn func(PowerChecked)) func(*Subscriber) {
	return func(s *Subscriber) { s.powerCheckedHandler = fn }
}

// OnPowerLow sets the handler for PowerLow events
func OnPowerLow(fn func(PowerLow)) func(*Subscriber) {
	return func(s *Subscriber) { s.powerLowHandler = fn }
}

// OnPowerCheckError sets the handler for PowerCheckError events
func OnPowerCheckError(fn func(PowerCheckError)) func(*Subscriber) {
	return func(s *Subscriber) { s.powerCheckErrorHandler = fn }
}

// OnRewardsClaimed sets the handler for RewardsClaimed events
func OnRewardsClaimed(fn func(RewardsClaimed)) func(*Subscriber) {
	return func(s *Subscriber) { s.rewardsClaimedHandler = fn }
}

// OnCostRefreshed sets the handler for CostRefreshed events
func OnCostRefreshed(fn func(CostRefreshed)) func(*Subscriber) {
	return func(s *Subscriber) { s.costRefreshedHandler = fn }
}

// OnCostRefreshError sets the handler for CostRefreshError events
func OnCostRefreshError(fn func(CostRefreshError)) func(*Subscriber) {
	return func(s *Subscriber) { s.costRefreshErrorHandler = fn }
}

// OnNotifyError sets the handler for NotifyError events
func OnNotifyError(fn func(NotifyError)) func(*Subscriber) {
	return func(s *Subscriber) { s.notifyErrorHandler = fn }
}

// OnStoreError sets the handler for StoreError events
func OnStoreError(fn func(StoreError)) func(*Subscriber) {
	return func(s *Subscriber) { s.storeErrorHandler = fn }
}

// OnStreamStopped sets the handler for StreamStopped events
func OnStreamStopped(fn func(StreamStopped)) func(*Subscriber) {
	return func(s *Subscriber) { s.streamStoppedHandler = fn }
}

// OnShutdown sets the handler for Shutdown events
func OnShutdown(fn func(Shutdown)) func(*Subscriber) {
	return func(s *Subscriber) { s.shutdownHandler = fn }
}

// NewSubscriber creates a Subscriber with the given options and starts the
// dispatch loop. Returns a closer function that waits for all events to be
// processed.
//
// Example:
//
//	closer := manager.NewSubscriber(events,
//	  manager.OnDelegationGranted(func(e DelegationGranted) { ... }),
//	)
//	defer closer()  // Ensures all events processed before exit
//
// The subscriber processes events until the events channel closes, then
// the closer function confirms all processing is complete.
func NewSubscriber(events <-chan Event, opts ...func(*Subscriber)) func() {
	s := &Subscriber{
		done:                     make(chan struct{}),
		startedHandler:           func(Started) {},           // nop by default
		bootstrapFailedHandler:   func(BootstrapFailed) {},   // nop by default
		userRegisteredHandler:    func(UserRegistered) {},    // nop by default
		delegationGrantedHandler: func(DelegationGranted) {}, // nop by default
		grantFailedHandler:       func(GrantFailed) {},       // nop by default
		delegationRevokedHandler: func(DelegationRevoked) {}, // nop by default
		revokeFailedHandler:      func(RevokeFailed) {},      // nop by default
		evaluationErrorHandler:   func(EvaluationError) {},   // nop by default
		reconcileRepairedHandler: func(ReconcileRepaired) {}, // nop by default
		reconcileErrorHandler:    func(ReconcileError) {},    // nop by default
		sweepCompletedHandler:    func(SweepCompleted) {},    // nop by default
		powerCheckedHandler:      func(PowerChecked) {},      // nop by default
		powerLowHandler:          func(PowerLow) {},          // nop by default
		powerCheckErrorHandler:   func(PowerCheckError) {},   // nop by default
		rewardsClaimedHandler:    func(RewardsClaimed) {},    // nop by default
		costRefreshedHandler:     func(CostRefreshed) {},     // nop by default
		costRefreshErrorHandler:  func(CostRefreshError) {},  // nop by default
		notifyErrorHandler:       func(NotifyError) {},       // nop by default
		storeErrorHandler:        func(StoreError) {},        // nop by default
		streamStoppedHandler:     func(StreamStopped) {},     // nop by default
		shutdownHandler:          func(Shutdown) {},          // nop by default
	}

	for _, opt := range opts {
		opt(s)
	}

	// Start the dispatch loop immediately
	go func() {
		defer close(s.done)
		for ev := range events {
			switch e := ev.(type) {
			case Started:
				s.startedHandler(e)
			case BootstrapFailed:
				s.bootstrapFailedHandler(e)
			case UserRegistered:
				s.userRegisteredHandler(e)
			case DelegationGranted:
				s.delegationGrantedHandler(e)
			case GrantFailed:
				s.grantFailedHandler(e)
			case DelegationRevoked:
				s.delegationRevokedHandler(e)
			case RevokeFailed:
				s.revokeFailedHandler(e)
			case EvaluationError:
				s.evaluationErrorHandler(e)
			case ReconcileRepaired:
				s.reconcileRepairedHandler(e)
			case ReconcileError:
				s.reconcileErrorHandler(e)
			case SweepCompleted:
				s.sweepCompletedHandler(e)
			case PowerChecked:
				s.powerCheckedHandler(e)
			case PowerLow:
				s.powerLowHandler(e)
			case PowerCheckError:
				s.powerCheckErrorHandler(e)
			case RewardsClaimed:
				s.rewardsClaimedHandler(e)
			case CostRefreshed:
				s.costRefreshedHandler(e)
			case CostRefreshError:
				s.costRefreshErrorHandler(e)
			case NotifyError:
				s.notifyErrorHandler(e)
			case StoreError:
				s.storeErrorHandler(e)
			case StreamStopped:
				s.streamStoppedHandler(e)
			case Shutdown:
				s.shutdownHandler(e)
			}
		}
	}()

	return func() {
		<-s.done
	}
}
