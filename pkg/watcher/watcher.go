package watcher

// Kind tags a watch with the role it plays in the project core. Kinds are
// used for logging and policy only; they never change dispatch behavior.
type Kind int

const (
	KindFailedLookupLocation Kind = iota
	KindMissingFilePath
	KindConfigFilePath
	KindWildcardDirectories
	KindTypeRoot
)

func (k Kind) String() string {
	switch k {
	case KindFailedLookupLocation:
		return "FailedLookupLocation"
	case KindMissingFilePath:
		return "MissingFilePath"
	case KindConfigFilePath:
		return "ConfigFilePath"
	case KindWildcardDirectories:
		return "WildcardDirectories"
	case KindTypeRoot:
		return "TypeRoot"
	default:
		return "Unknown"
	}
}

// CloseReason records why a watch was shut down. Every termination path
// closes with exactly one reason; tests assert on these instead of matching
// log strings.
type CloseReason int

const (
	ReasonProjectClose CloseReason = iota
	ReasonNotNeeded
	ReasonFileCreated
	ReasonRecursiveChanged
)

func (r CloseReason) String() string {
	switch r {
	case ReasonProjectClose:
		return "ProjectClose"
	case ReasonNotNeeded:
		return "NotNeeded"
	case ReasonFileCreated:
		return "FileCreated"
	case ReasonRecursiveChanged:
		return "RecursiveChanged"
	default:
		return "Unknown"
	}
}

// EventKind is the change classification delivered to file callbacks.
type EventKind int

const (
	Created EventKind = iota
	Changed
	Deleted
)

func (e EventKind) String() string {
	switch e {
	case Created:
		return "created"
	case Changed:
		return "changed"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// FileCallback receives per-file watch events.
type FileCallback func(fileName string, kind EventKind)

// DirCallback receives the changed file name under a watched directory.
type DirCallback func(fileName string)

// FileWatcher is the handle returned for every watch. Closing twice is a
// programming error; every implementation ignores the second call, and
// FSHost also logs it.
type FileWatcher interface {
	Close(reason CloseReason)
}

// Host creates watches. The production implementation multiplexes one
// fsnotify watcher; tests use MockHost.
type Host interface {
	WatchFile(path string, cb FileCallback) FileWatcher
	WatchDirectory(path string, recursive bool, cb DirCallback) FileWatcher
}
