package watcher

import "sort"

type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
	EventRename
)

func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	case EventRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Gone reports whether the file is no longer at its path.
func (e EventType) Gone() bool {
	return e == EventDelete || e == EventRename
}

// Batch is the net effect of the events of one quiet window. A path is in
// exactly one of the lists: the last event for it decides which.
type Batch struct {
	Changed []string
	Gone    []string
}

func (b Batch) Empty() bool {
	return len(b.Changed) == 0 && len(b.Gone) == 0
}

func (b Batch) Len() int {
	return len(b.Changed) + len(b.Gone)
}

func newBatch(pending map[string]EventType) Batch {
	var b Batch
	for path, typ := range pending {
		if typ.Gone() {
			b.Gone = append(b.Gone, path)
		} else {
			b.Changed = append(b.Changed, path)
		}
	}
	sort.Strings(b.Changed)
	sort.Strings(b.Gone)
	return b
}
