package domain

import "time"

// MergeOutcome is the verdict of a last-write-wins comparison between a
// local and a remote copy of the same entity.
type MergeOutcome int

const (
	// Equal means neither side needs to change.
	Equal MergeOutcome = iota
	// LocalWins means the local copy is newer and should be pushed.
	LocalWins
	// RemoteWins means the remote copy is newer and should overwrite local.
	RemoteWins
)

func (o MergeOutcome) String() string {
	switch o {
	case LocalWins:
		return "local"
	case RemoteWins:
		return "remote"
	default:
		return "equal"
	}
}

// CompareByUpdatedAt resolves a conflict on wall-clock timestamps alone.
// Equal timestamps produce Equal so a repeated merge with no intervening
// change writes nothing in either direction.
func CompareByUpdatedAt(local, remote time.Time) MergeOutcome {
	if local.After(remote) {
		return LocalWins
	}
	if remote.After(local) {
		return RemoteWins
	}
	return Equal
}
