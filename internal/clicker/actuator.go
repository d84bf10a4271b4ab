package clicker

// Actuator injects synthetic button input. It is owned by a single run
// and never shared between goroutines.
type Actuator interface {
	Press(b Button) error
	Release(b Button) error
	Click(b Button) error
	Close() error
}

// ActuatorFactory builds a fresh actuator. The scheduler calls it once per
// run, inside the background goroutine.
type ActuatorFactory func() (Actuator, error)
