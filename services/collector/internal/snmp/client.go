package snmp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
)

// Printer-MIB objects polled on every device.
const (
	// OIDPageCount is prtMarkerLifeCount for the first marker.
	OIDPageCount = "1.3.6.1.2.1.43.10.2.1.4.1.1"
	// OIDSerialNumber is prtGeneralSerialNumber.
	OIDSerialNumber = "1.3.6.1.2.1.43.5.1.1.17.1"
)

// ErrNoValue is returned when the device answers without a usable value.
var ErrNoValue = errors.New("snmp: no value")

// Client reads printer counters over SNMP v2c.
type Client struct {
	Community string
	Port      uint16
	Timeout   time.Duration
	Retries   int
}

// NewClient returns a client with the defaults used for the printer fleet.
func NewClient(community string, port uint16, timeout time.Duration, retries int) *Client {
	if community == "" {
		community = "public"
	}
	if port == 0 {
		port = 161
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	return &Client{Community: community, Port: port, Timeout: timeout, Retries: retries}
}

// ReadCounter returns the lifetime page count of the printer at address.
func (c *Client) ReadCounter(ctx context.Context, address string) (*int64, error) {
	pdu, err := c.get(ctx, address, OIDPageCount)
	if err != nil {
		return nil, err
	}
	v, err := counterValue(pdu)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", address, OIDPageCount, err)
	}
	return &v, nil
}

// ReadIdentity returns the serial number of the printer at address.
func (c *Client) ReadIdentity(ctx context.Context, address string) (*string, error) {
	pdu, err := c.get(ctx, address, OIDSerialNumber)
	if err != nil {
		return nil, err
	}
	s, err := stringValue(pdu)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", address, OIDSerialNumber, err)
	}
	return &s, nil
}

func (c *Client) get(ctx context.Context, address, oid string) (gosnmp.SnmpPDU, error) {
	g := &gosnmp.GoSNMP{
		Target:    address,
		Port:      c.Port,
		Community: c.Community,
		Version:   gosnmp.Version2c,
		Timeout:   c.Timeout,
		Retries:   c.Retries,
		Context:   ctx,
	}
	if err := g.Connect(); err != nil {
		return gosnmp.SnmpPDU{}, fmt.Errorf("snmp connect %s: %w", address, err)
	}
	defer g.Conn.Close()

	res, err := g.Get([]string{oid})
	if err != nil {
		return gosnmp.SnmpPDU{}, fmt.Errorf("snmp get %s %s: %w", address, oid, err)
	}
	if res.Error != gosnmp.NoError {
		return gosnmp.SnmpPDU{}, fmt.Errorf("snmp get %s %s: status %s", address, oid, res.Error)
	}
	if len(res.Variables) == 0 {
		return gosnmp.SnmpPDU{}, fmt.Errorf("%s %s: %w", address, oid, ErrNoValue)
	}
	return res.Variables[0], nil
}

func counterValue(pdu gosnmp.SnmpPDU) (int64, error) {
	switch pdu.Type {
	case gosnmp.Integer, gosnmp.Counter32, gosnmp.Counter64, gosnmp.Gauge32, gosnmp.Uinteger32:
		n := gosnmp.ToBigInt(pdu.Value)
		if !n.IsInt64() {
			return 0, fmt.Errorf("counter %s overflows int64", n)
		}
		return n.Int64(), nil
	case gosnmp.OctetString:
		s, err := stringValue(pdu)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("non-numeric counter %q", s)
		}
		return v, nil
	default:
		return 0, fmt.Errorf("%w (type %s)", ErrNoValue, pdu.Type)
	}
}

func stringValue(pdu gosnmp.SnmpPDU) (string, error) {
	if pdu.Type != gosnmp.OctetString {
		return "", fmt.Errorf("%w (type %s)", ErrNoValue, pdu.Type)
	}
	b, ok := pdu.Value.([]byte)
	if !ok {
		return "", fmt.Errorf("%w (value %T)", ErrNoValue, pdu.Value)
	}
	return strings.TrimSpace(strings.Trim(string(b), "\x00")), nil
}
