package progress

import "sync"

// EventKind distinguishes recorded events.
type EventKind string

const (
	EventStarted  EventKind = "started"
	EventProgress EventKind = "progress"
	EventFinished EventKind = "finished"
)

// Event is one recorded group event.
type Event struct {
	Kind  EventKind
	Group string
	Item  string
	Done  int
	Total int
	Err   error
}

// Recorder keeps every event in memory. The CLI uses it to print the
// progress tree after a run; tests use it to inspect the hierarchy.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) GroupStarted(path []string, total int) {
	r.add(Event{Kind: EventStarted, Group: Key(path), Total: total})
}

func (r *Recorder) GroupProgress(path []string, item string, done, total int) {
	r.add(Event{Kind: EventProgress, Group: Key(path), Item: item, Done: done, Total: total})
}

func (r *Recorder) GroupFinished(path []string, err error) {
	r.add(Event{Kind: EventFinished, Group: Key(path), Err: err})
}

func (r *Recorder) add(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of everything recorded.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Groups returns started group keys in start order.
func (r *Recorder) Groups() []string {
	var out []string
	for _, e := range r.Events() {
		if e.Kind == EventStarted {
			out = append(out, e.Group)
		}
	}
	return out
}

// Items returns the completed items reported for a group.
func (r *Recorder) Items(group string) []string {
	var out []string
	for _, e := range r.Events() {
		if e.Kind == EventProgress && e.Group == group {
			out = append(out, e.Item)
		}
	}
	return out
}
