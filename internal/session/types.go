package session

import (
	"errors"
	"io/fs"
	"os"
	"sync"
)

// FileState tracks ownership of a Track's downloaded file. The file is
// removed exactly once, either by the completion handler after playback or by
// teardown for tracks that never started.
type FileState int

const (
	FileFetched FileState = iota
	FilePlaying
	FileDeleted
)

// Track is one resolved media item. Metadata fields are set before the track
// is published to a queue and not touched afterwards.
type Track struct {
	Title       string
	SourceURL   string
	DurationSec int
	Thumbnail   string
	RequestedBy string
	LocalPath   string

	fileMu    sync.Mutex
	fileState FileState
}

func (t *Track) FileState() FileState {
	t.fileMu.Lock()
	defer t.fileMu.Unlock()
	return t.fileState
}

func (t *Track) markPlaying() {
	t.fileMu.Lock()
	if t.fileState == FileFetched {
		t.fileState = FilePlaying
	}
	t.fileMu.Unlock()
}

// removeFile deletes the downloaded file. Safe to call more than once; the
// second and later calls do nothing. A file that is already gone is not an
// error.
func (t *Track) removeFile() error {
	t.fileMu.Lock()
	defer t.fileMu.Unlock()
	if t.fileState == FileDeleted {
		return nil
	}
	t.fileState = FileDeleted
	if t.LocalPath == "" {
		return nil
	}
	if err := os.Remove(t.LocalPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

type Status int

const (
	StatusIdle Status = iota
	StatusDownloading
	StatusPlaying
	StatusPaused
	StatusDraining
	StatusDisconnecting
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusDownloading:
		return "downloading"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusDraining:
		return "draining"
	case StatusDisconnecting:
		return "disconnecting"
	}
	return "unknown"
}

// TeardownReason says why a session is going away.
type TeardownReason string

const (
	ReasonUser     TeardownReason = "user"
	ReasonIdle     TeardownReason = "idle"
	ReasonExternal TeardownReason = "external"
)
