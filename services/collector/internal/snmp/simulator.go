package snmp

import "context"

// Simulator answers every read with fixed values, for exercising the
// collector without devices on the network.
type Simulator struct {
	Pages  int64
	Serial string
}

// NewSimulator returns a Simulator with the values used in development.
func NewSimulator() *Simulator {
	return &Simulator{Pages: 123456, Serial: "SN123456"}
}

func (s *Simulator) ReadCounter(ctx context.Context, _ string) (*int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v := s.Pages
	return &v, nil
}

func (s *Simulator) ReadIdentity(ctx context.Context, _ string) (*string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v := s.Serial
	return &v, nil
}
