// Package track defines the location sample data model for walk streaming.
//
// A Sample is one GPS observation captured during an active walk. Samples are
// validated before they enter the outbound pipeline; invalid samples are never
// transmitted.
package track

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pawtrack/walkstream/errors"
)

// MinLatitude is the minimum valid latitude coordinate.
const MinLatitude float64 = -90.0

// MaxLatitude is the maximum valid latitude coordinate.
const MaxLatitude float64 = 90.0

// MinLongitude is the minimum valid longitude coordinate.
const MinLongitude float64 = -180.0

// MaxLongitude is the maximum valid longitude coordinate.
const MaxLongitude float64 = 180.0

// DefaultAccuracy is the GPS accuracy in meters assumed when a fix reports none.
const DefaultAccuracy float64 = 10.0

// MaxAccuracy is the maximum acceptable GPS accuracy in meters (exclusive).
const MaxAccuracy float64 = 100.0

// MaxSpeed is the maximum plausible walking speed in m/s (exclusive).
const MaxSpeed float64 = 30.0

// MaxSampleAge is the freshness window: samples captured longer ago are rejected.
const MaxSampleAge = 5 * time.Minute

// Sample is one GPS observation tied to a walk session.
type Sample struct {
	// ID uniquely identifies this observation (UUID v4).
	ID string `json:"id"`

	// SessionID links the observation to a walk session.
	SessionID string `json:"sessionId"`

	// Latitude in decimal degrees.
	Latitude float64 `json:"latitude"`

	// Longitude in decimal degrees.
	Longitude float64 `json:"longitude"`

	// Accuracy is the positional accuracy in meters.
	Accuracy float64 `json:"accuracy"`

	// Speed is the ground speed in meters per second.
	Speed float64 `json:"speed"`

	// Altitude is the height above sea level in meters, when the fix provides it.
	Altitude float64 `json:"altitude,omitempty"`

	// CapturedAt is the UTC time the fix was recorded.
	CapturedAt time.Time `json:"capturedAt"`
}

// NewSample creates a Sample for the given session with a generated ID and the
// current UTC capture time. A zero accuracy is replaced with DefaultAccuracy.
// The returned sample has been validated.
func NewSample(sessionID string, latitude, longitude, accuracy, speed float64) (Sample, error) {
	if accuracy == 0 {
		accuracy = DefaultAccuracy
	}

	s := Sample{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		Latitude:   latitude,
		Longitude:  longitude,
		Accuracy:   accuracy,
		Speed:      speed,
		CapturedAt: time.Now().UTC(),
	}

	if err := s.Validate(); err != nil {
		return Sample{}, err
	}
	return s, nil
}

// Validate checks all range and freshness invariants:
//  1. SessionID must not be empty.
//  2. Latitude within [-90, 90], longitude within [-180, 180].
//  3. Accuracy within [0, 100), speed within [0, 30).
//  4. CapturedAt within the last 5 minutes and not in the future.
func (s Sample) Validate() error {
	return s.validateAt(time.Now().UTC())
}

// validateAt applies the invariants against an explicit reference time so
// freshness checks are testable.
func (s Sample) validateAt(now time.Time) error {
	if s.SessionID == "" {
		return errors.WrapInvalid(errors.ErrSampleInvalid, "Sample", "Validate", "session id missing")
	}
	if s.Latitude < MinLatitude || s.Latitude > MaxLatitude {
		return errors.WrapInvalid(errors.ErrSampleInvalid, "Sample", "Validate",
			fmt.Sprintf("latitude %.6f out of range", s.Latitude))
	}
	if s.Longitude < MinLongitude || s.Longitude > MaxLongitude {
		return errors.WrapInvalid(errors.ErrSampleInvalid, "Sample", "Validate",
			fmt.Sprintf("longitude %.6f out of range", s.Longitude))
	}
	if s.Accuracy < 0 || s.Accuracy >= MaxAccuracy {
		return errors.WrapInvalid(errors.ErrSampleInvalid, "Sample", "Validate",
			fmt.Sprintf("accuracy %.1fm out of range", s.Accuracy))
	}
	if s.Speed < 0 || s.Speed >= MaxSpeed {
		return errors.WrapInvalid(errors.ErrSampleInvalid, "Sample", "Validate",
			fmt.Sprintf("speed %.1fm/s out of range", s.Speed))
	}
	if s.CapturedAt.IsZero() {
		return errors.WrapInvalid(errors.ErrSampleStale, "Sample", "Validate", "capture time missing")
	}
	if s.CapturedAt.After(now) {
		return errors.WrapInvalid(errors.ErrSampleStale, "Sample", "Validate", "capture time in the future")
	}
	if now.Sub(s.CapturedAt) > MaxSampleAge {
		return errors.WrapInvalid(errors.ErrSampleStale, "Sample", "Validate",
			fmt.Sprintf("captured %s ago", now.Sub(s.CapturedAt).Round(time.Second)))
	}
	return nil
}

// MarshalBatch serializes an ordered batch of samples as the pre-encryption
// wire form: a JSON array of sample objects in arrival order.
func MarshalBatch(samples []Sample) ([]byte, error) {
	data, err := json.Marshal(samples)
	if err != nil {
		return nil, errors.WrapTransient(err, "track", "MarshalBatch", "serialize samples")
	}
	return data, nil
}

// UnmarshalBatch is the inverse of MarshalBatch.
func UnmarshalBatch(data []byte) ([]Sample, error) {
	var samples []Sample
	if err := json.Unmarshal(data, &samples); err != nil {
		return nil, errors.WrapInvalid(err, "track", "UnmarshalBatch", "parse samples")
	}
	return samples, nil
}
