package playback

const eventBufferSize = 16

// Subscription provides event channels for a subscriber.
type Subscription struct {
	StateChanged <-chan StateChange
	TrackChanged <-chan TrackChange
	Ready        <-chan ReadyEvent
	Started      <-chan StartedEvent
	Ended        <-chan EndedEvent
	Error        <-chan ErrorEvent
	Done         <-chan struct{}

	// Internal write channels
	stateCh   chan StateChange
	trackCh   chan TrackChange
	readyCh   chan ReadyEvent
	startedCh chan StartedEvent
	endedCh   chan EndedEvent
	errorCh   chan ErrorEvent
	doneCh    chan struct{}
}

// newSubscription creates a new subscription with buffered channels.
func newSubscription() *Subscription {
	s := &Subscription{
		stateCh:   make(chan StateChange, eventBufferSize),
		trackCh:   make(chan TrackChange, eventBufferSize),
		readyCh:   make(chan ReadyEvent, eventBufferSize),
		startedCh: make(chan StartedEvent, eventBufferSize),
		endedCh:   make(chan EndedEvent, eventBufferSize),
		errorCh:   make(chan ErrorEvent, eventBufferSize),
		doneCh:    make(chan struct{}),
	}
	s.StateChanged = s.stateCh
	s.TrackChanged = s.trackCh
	s.Ready = s.readyCh
	s.Started = s.startedCh
	s.Ended = s.endedCh
	s.Error = s.errorCh
	s.Done = s.doneCh
	return s
}

// close signals subscribers to stop by closing doneCh.
func (s *Subscription) close() {
	close(s.doneCh)
}

// Sends never block: events are dropped when a buffer is full.

func (s *Subscription) sendState(e StateChange) {
	select {
	case s.stateCh <- e:
	default:
	}
}

func (s *Subscription) sendTrack(e TrackChange) {
	select {
	case s.trackCh <- e:
	default:
	}
}

func (s *Subscription) sendReady(e ReadyEvent) {
	select {
	case s.readyCh <- e:
	default:
	}
}

func (s *Subscription) sendStarted(e StartedEvent) {
	select {
	case s.startedCh <- e:
	default:
	}
}

func (s *Subscription) sendEnded(e EndedEvent) {
	select {
	case s.endedCh <- e:
	default:
	}
}

func (s *Subscription) sendError(e ErrorEvent) {
	select {
	case s.errorCh <- e:
	default:
	}
}
