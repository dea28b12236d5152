package monitor

type State int32

const (
	StateIdle State = iota
	StateSampling
	StateValid
	StateInvalid
	StateDelivering
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSampling:
		return "sampling"
	case StateValid:
		return "valid"
	case StateInvalid:
		return "invalid"
	case StateDelivering:
		return "delivering"
	default:
		return "unknown"
	}
}
