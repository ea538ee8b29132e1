package host

// State is the lifecycle state of a Host.
type State int32

const (
	Unspecialized State = iota
	Specializing
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Unspecialized:
		return "Unspecialized"
	case Specializing:
		return "Specializing"
	case Ready:
		return "Ready"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
