package transfer

// EventKind classifies progress events.
type EventKind string

const (
	EventStage        EventKind = "stage"
	EventProgress     EventKind = "progress"
	EventPartUploaded EventKind = "part_uploaded"
	EventFinished     EventKind = "finished"
)

// Event is a structured progress notification. TotalBytes is -1 when the size
// is not known in advance.
type Event struct {
	Kind       EventKind
	ArtifactID string
	Stage      string
	Part       int
	Total      int
	Bytes      int64
	TotalBytes int64
	Outcome    Outcome
	Err        error
}

// EventSink receives events. It is called synchronously from worker
// goroutines and must not block.
type EventSink func(Event)
