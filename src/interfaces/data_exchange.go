package interfaces

// -----------------------------------------------------------------------------
// IEventSink is the owning connection of a session. Send must not block on a
// slow peer; it reports false when the event could not be queued.
// -----------------------------------------------------------------------------

type IEventSink interface {
	Send(event interface{}) bool
}

// -----------------------------------------------------------------------------
// IPublisher fans an event out to every subscriber of a group.
// -----------------------------------------------------------------------------

type IPublisher interface {
	Publish(group string, event interface{})
}
