package session

type State int

const (
	Idle State = iota
	Capturing
	Submitting
	Resolving
	Applied
	NotFound
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Capturing:
		return "CAPTURING"
	case Submitting:
		return "SUBMITTING"
	case Resolving:
		return "RESOLVING"
	case Applied:
		return "APPLIED"
	case NotFound:
		return "NOT_FOUND"
	case Failed:
		return "FAILED"
	}
	return "UNKNOWN"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether s ends an attempt.
func (s State) Terminal() bool {
	return s == Applied || s == NotFound || s == Failed
}
