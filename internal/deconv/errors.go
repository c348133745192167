package deconv

import (
	"errors"
	"fmt"
)

// Error kinds. Every concrete error below unwraps to one of these.
var (
	ErrConfiguration  = errors.New("deconv: invalid configuration")
	ErrWeightShape    = errors.New("deconv: weight table shape mismatch")
	ErrStreamProtocol = errors.New("deconv: stream protocol violation")
	ErrOverflow       = errors.New("deconv: accumulator overflow")
)

// ConfigurationError names the offending parameter.
type ConfigurationError struct {
	Param  string
	Value  int
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("deconv: invalid configuration: %s=%d: %s", e.Param, e.Value, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// WeightShapeError reports a weight table of the wrong element count.
type WeightShapeError struct {
	Got  int
	Want int
}

func (e *WeightShapeError) Error() string {
	return fmt.Sprintf("deconv: weight table has %d elements, want %d (K*K*CI*CO)", e.Got, e.Want)
}

func (e *WeightShapeError) Unwrap() error { return ErrWeightShape }

// WeightRangeError reports a weight that does not fit the declared weight
// precision. It matches ErrWeightShape.
type WeightRangeError struct {
	Index int
	Value int64
	Min   int64
	Max   int64
}

func (e *WeightRangeError) Error() string {
	return fmt.Sprintf("deconv: weight[%d]=%d outside [%d, %d]", e.Index, e.Value, e.Min, e.Max)
}

func (e *WeightRangeError) Unwrap() error { return ErrWeightShape }

// StreamProtocolError reports a malformed input stream.
type StreamProtocolError struct {
	Consumed int
	Expected int
	Reason   string
}

func (e *StreamProtocolError) Error() string {
	return fmt.Sprintf("deconv: stream protocol: %s (consumed %d of %d scalars)", e.Reason, e.Consumed, e.Expected)
}

func (e *StreamProtocolError) Unwrap() error { return ErrStreamProtocol }

// OverflowError reports an accumulator leaving its declared range.
type OverflowError struct {
	Row     int
	Col     int
	Channel int
	Value   int64
	Bits    uint
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("deconv: accumulator (%d,%d) channel %d reached %d, beyond %d bits",
		e.Row, e.Col, e.Channel, e.Value, e.Bits)
}

func (e *OverflowError) Unwrap() error { return ErrOverflow }
