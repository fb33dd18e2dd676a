package correction

// Event is one sensor sample as delivered by the sensor layer. A zero
// SensorHandle tells the layer to discard the event.
type Event struct {
	SensorHandle int32
	Timestamp    int64
	Data         [16]float64
}

// Scalar returns the lux reading.
func (e *Event) Scalar() float64 { return e.Data[ScalarIndex] }

// SetScalar replaces the lux reading.
func (e *Event) SetScalar(v float64) { e.Data[ScalarIndex] = v }

// Drop marks the event for discard.
func (e *Event) Drop() { e.SensorHandle = 0 }

// Dropped reports whether the event was marked for discard.
func (e *Event) Dropped() bool { return e.SensorHandle == 0 }

// Outcome says what Process did with an event.
type Outcome int

const (
	Dropped Outcome = iota
	Cached
	Fresh
	Bypassed
)

func (o Outcome) String() string {
	return [...]string{"dropped", "cached", "fresh", "bypassed"}[o]
}

// MarshalText encodes the outcome by name.
func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }
