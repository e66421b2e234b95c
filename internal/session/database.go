package session

// A Database persists the download queue between runs.
type Database interface {
	ListDownloads() ([]DownloadPersistentState, error)
	WriteDownload(*DownloadPersistentState) error
	DeleteDownload(*DownloadPersistentState) error
}

// NilDatabase forgets everything, for when the queue only needs to last as long as the process.
type NilDatabase struct{}

func (d NilDatabase) ListDownloads() ([]DownloadPersistentState, error) {
	return nil, nil
}

func (d NilDatabase) WriteDownload(_ *DownloadPersistentState) error {
	return nil
}

func (d NilDatabase) DeleteDownload(_ *DownloadPersistentState) error {
	return nil
}
