package monitor

import (
	"math"

	"github.com/yaap/device-oneplus-sm8150-common/internal/host"
)

// Message types.
type Message struct {
	Type string `json:"type"`
}

type HelloMessage struct {
	Type     string           `json:"type"`
	ID       string           `json:"id"`
	Readings []ReadingMessage `json:"readings"`
}

// ReadingMessage is a host.Reading with unbounded band edges as null.
type ReadingMessage struct {
	Type      string   `json:"type"`
	Seq       uint64   `json:"seq"`
	Handle    int32    `json:"handle"`
	Outcome   string   `json:"outcome"`
	Raw       float64  `json:"raw"`
	Lux       float64  `json:"lux"`
	Gain      float64  `json:"gain"`
	BandMin   *float64 `json:"band_min"`
	BandMax   *float64 `json:"band_max"`
	Timestamp int64    `json:"timestamp"`
}

type StatsMessage struct {
	Type  string     `json:"type"`
	Stats host.Stats `json:"stats"`
}

type RateLimitedMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newReadingMessage(r host.Reading) ReadingMessage {
	return ReadingMessage{
		Type:      "reading",
		Seq:       r.Seq,
		Handle:    r.Handle,
		Outcome:   r.Outcome.String(),
		Raw:       r.Raw,
		Lux:       r.Lux,
		Gain:      r.Gain,
		BandMin:   finite(r.BandMin),
		BandMax:   finite(r.BandMax),
		Timestamp: r.Timestamp,
	}
}

func newReadingMessages(rs []host.Reading) []ReadingMessage {
	out := make([]ReadingMessage, len(rs))
	for i, r := range rs {
		out[i] = newReadingMessage(r)
	}
	return out
}

func finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}
