package session

type Event interface {
	// The Download this event relates to (nil if not a Download-specific event).
	Download() *Download
}

type downloadEvent struct {
	download *Download
}

func (e downloadEvent) Download() *Download {
	return e.download
}

type DownloadAdded struct {
	downloadEvent
}
type DownloadRemoved struct {
	downloadEvent
}
type DownloadStarted struct {
	downloadEvent
}

// DownloadStopped is sent whenever a download stops running; Err is set if it stopped because of a failure.
type DownloadStopped struct {
	downloadEvent
	Err error
}
type DownloadUpdated struct {
	downloadEvent
	OldState DownloadState
	NewState DownloadState
}
type DownloadComplete struct {
	downloadEvent
	Path string
}
