//go:build nocgo
// +build nocgo

package backend

import "time"

// OtoConfig configures the oto device.
type OtoConfig struct {
	SampleRate int
	BufferSize time.Duration
	MaxVoices  int
}

// Oto is unavailable in nocgo builds; every call fails with ErrUnavailable.
type Oto struct{}

func NewOto(OtoConfig) *Oto { return &Oto{} }

func (*Oto) Open() error                                   { return ErrUnavailable }
func (*Oto) Close() error                                  { return nil }
func (*Oto) CreateBuffer([]byte, Format) (BufferID, error) { return 0, ErrUnavailable }
func (*Oto) DeleteBuffer(BufferID)                         {}
func (*Oto) AllocVoice() (Voice, error)                    { return nil, ErrUnavailable }
func (*Oto) SetMasterGain(float64)                         {}
func (*Oto) MasterGain() float64                           { return 0 }
