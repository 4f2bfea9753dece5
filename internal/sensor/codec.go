package sensor

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/hperssn/pulse/internal/domain"
)

var ErrEmptyPayload = errors.New("empty sample payload")

// Reading is the wire form of one heart-rate sample. A payload is either a
// single reading or a JSON array of readings, oldest first.
type Reading struct {
	Subject string  `json:"subject,omitempty"` // wearer id
	Ts      int64   `json:"ts"` // unix millis
	HR      float64 `json:"hr"`
}

func Decode(data []byte) ([]domain.Sample, error) {
	return DecodeFor(data, "")
}

// DecodeFor is Decode keeping only the readings of one wearer. Readings
// without a subject are kept; an empty wearer keeps everything.
func DecodeFor(data []byte, wearer string) ([]domain.Sample, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}

	var readings []Reading
	if data[0] == '[' {
		if err := json.Unmarshal(data, &readings); err != nil {
			return nil, err
		}
	} else {
		var r Reading
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, err
		}
		readings = []Reading{r}
	}

	samples := make([]domain.Sample, 0, len(readings))
	for _, r := range readings {
		if wearer != "" && r.Subject != "" && r.Subject != wearer {
			continue
		}
		ts := time.Now()
		if r.Ts > 0 {
			ts = time.UnixMilli(r.Ts)
		}
		samples = append(samples, domain.Sample{Value: r.HR, Timestamp: ts})
	}
	return samples, nil
}

func Encode(subject string, s domain.Sample) ([]byte, error) {
	return json.Marshal(Reading{
		Subject: subject,
		Ts:      s.Timestamp.UnixMilli(),
		HR:      s.Value,
	})
}
