package snmp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterValue(t *testing.T) {
	tests := []struct {
		name string
		pdu  gosnmp.SnmpPDU
		want int64
	}{
		{"counter32", gosnmp.SnmpPDU{Type: gosnmp.Counter32, Value: uint(48211)}, 48211},
		{"integer", gosnmp.SnmpPDU{Type: gosnmp.Integer, Value: 1200}, 1200},
		{"counter64", gosnmp.SnmpPDU{Type: gosnmp.Counter64, Value: uint64(9_000_000_000)}, 9_000_000_000},
		{"numeric string", gosnmp.SnmpPDU{Type: gosnmp.OctetString, Value: []byte("123456")}, 123456},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := counterValue(tt.pdu)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCounterValueErrors(t *testing.T) {
	_, err := counterValue(gosnmp.SnmpPDU{Type: gosnmp.NoSuchInstance})
	assert.True(t, errors.Is(err, ErrNoValue))

	_, err = counterValue(gosnmp.SnmpPDU{Type: gosnmp.OctetString, Value: []byte("n/a")})
	assert.Error(t, err)
}

func TestStringValue(t *testing.T) {
	got, err := stringValue(gosnmp.SnmpPDU{Type: gosnmp.OctetString, Value: []byte("SN123456\x00 ")})
	require.NoError(t, err)
	assert.Equal(t, "SN123456", got)

	_, err = stringValue(gosnmp.SnmpPDU{Type: gosnmp.Integer, Value: 3})
	assert.True(t, errors.Is(err, ErrNoValue))
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient("", 0, 0, -1)
	assert.Equal(t, "public", c.Community)
	assert.Equal(t, uint16(161), c.Port)
	assert.Equal(t, 2*time.Second, c.Timeout)
	assert.Equal(t, 0, c.Retries)
}

func TestSimulator(t *testing.T) {
	s := NewSimulator()
	pages, err := s.ReadCounter(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, int64(123456), *pages)

	serial, err := s.ReadIdentity(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "SN123456", *serial)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.ReadCounter(ctx, "10.0.0.1")
	assert.ErrorIs(t, err, context.Canceled)
}
