package pubsub

// filtered passes on the messages accepted by accept. A rejected message still counts as delivered unless the
// subscriber is closed, so the publisher keeps the subscription.
type filtered[T any] struct {
	SenderCloser[T]
	accept func(T) bool
}

func (f *filtered[T]) Send(msg T) bool {
	if f.accept(msg) {
		return f.SenderCloser.Send(msg)
	}
	select {
	case <-f.Closed():
		return false
	default:
		return true
	}
}
