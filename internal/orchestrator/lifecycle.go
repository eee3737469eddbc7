package orchestrator

// Phase is the stage of the most recent request.
type Phase int

const (
	Idle Phase = iota
	Loading
	Success
	Error
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Success:
		return "success"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Lifecycle is the outcome of the most recent request. Payload is set only
// in Success and Message only in Error.
type Lifecycle struct {
	Phase     Phase
	Payload   any
	Message   string
	Endpoint  string
	RequestID string
}

// Observer is notified after every lifecycle transition.
type Observer func(Lifecycle)
