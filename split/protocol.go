// Package split carries gradient updates from a training participant to the
// party aggregating them. In the leakage setting the aggregator is the
// attacker, and what it receives here is all it knows of the private batch.
package split

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"

	"gradleak/tensor"
)

func init() {
	// Register types for gob encoding
	gob.Register(GradientPayload{})
}

// MessageType defines message types for the gradient exchange
type MessageType int

const (
	MsgGradients MessageType = iota
	MsgDone
)

// Message represents a message in the gradient exchange
type Message struct {
	Type    MessageType
	Payload interface{}
}

// GradientPayload is one participant's parameter gradients for a round, in
// parameter order.
type GradientPayload struct {
	Round  int
	Shapes [][]int
	Data   [][]float64
}

// NewGradientPayload copies grads into a payload.
func NewGradientPayload(round int, grads []*tensor.Tensor) GradientPayload {
	p := GradientPayload{
		Round:  round,
		Shapes: make([][]int, len(grads)),
		Data:   make([][]float64, len(grads)),
	}
	for i, g := range grads {
		p.Shapes[i] = append([]int(nil), g.Shape...)
		p.Data[i] = append([]float64(nil), g.Data...)
	}
	return p
}

// Tensors rebuilds the gradient tensors, checking every shape.
func (p *GradientPayload) Tensors() ([]*tensor.Tensor, error) {
	if len(p.Shapes) != len(p.Data) {
		return nil, fmt.Errorf("gradient payload: %d shapes for %d tensors", len(p.Shapes), len(p.Data))
	}
	out := make([]*tensor.Tensor, len(p.Data))
	for i := range p.Data {
		t, err := tensor.FromData(p.Data[i], p.Shapes[i]...)
		if err != nil {
			return nil, fmt.Errorf("gradient payload tensor %d: %w", i, err)
		}
		out[i] = t
	}
	return out, nil
}

// Protocol handles the gradient exchange
type Protocol struct {
	encoder *gob.Encoder
	decoder *gob.Decoder
}

// NewProtocol creates a new protocol handler
func NewProtocol(r io.Reader, w io.Writer) *Protocol {
	return &Protocol{
		encoder: gob.NewEncoder(w),
		decoder: gob.NewDecoder(r),
	}
}

// Send sends a message
func (p *Protocol) Send(msg *Message) error {
	return p.encoder.Encode(msg)
}

// Receive receives a message
func (p *Protocol) Receive() (*Message, error) {
	var msg Message
	if err := p.decoder.Decode(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SendGradients sends one round of gradients
func (p *Protocol) SendGradients(round int, grads []*tensor.Tensor) error {
	return p.Send(&Message{
		Type:    MsgGradients,
		Payload: NewGradientPayload(round, grads),
	})
}

// SendDone signals completion
func (p *Protocol) SendDone() error {
	return p.Send(&Message{Type: MsgDone})
}

// ReceiveGradients receives a gradient payload
func (p *Protocol) ReceiveGradients() (*GradientPayload, error) {
	msg, err := p.Receive()
	if err != nil {
		return nil, err
	}
	if msg.Type == MsgDone {
		return nil, io.EOF
	}
	if msg.Type != MsgGradients {
		return nil, fmt.Errorf("expected gradient message, got %d", msg.Type)
	}
	payload, ok := msg.Payload.(GradientPayload)
	if !ok {
		return nil, fmt.Errorf("invalid gradient payload type")
	}
	return &payload, nil
}

// Upload writes one participant round to w: the gradients, then the end of
// the exchange.
func Upload(w io.Writer, round int, grads []*tensor.Tensor) error {
	p := NewProtocol(nil, w)
	if err := p.SendGradients(round, grads); err != nil {
		return fmt.Errorf("send gradients: %w", err)
	}
	if err := p.SendDone(); err != nil {
		return fmt.Errorf("send done: %w", err)
	}
	return nil
}

// Observe reads one participant round written by Upload and checks that the
// exchange ends right after it.
func Observe(r io.Reader, round int) ([]*tensor.Tensor, error) {
	p := NewProtocol(r, nil)
	payload, err := p.ReceiveGradients()
	if err != nil {
		return nil, fmt.Errorf("receive gradients: %w", err)
	}
	if payload.Round != round {
		return nil, fmt.Errorf("received round %d, want %d", payload.Round, round)
	}
	msg, err := p.Receive()
	if err != nil {
		return nil, fmt.Errorf("exchange not closed: %w", err)
	}
	if msg.Type != MsgDone {
		return nil, fmt.Errorf("exchange not closed: message %d after round %d", msg.Type, round)
	}
	return payload.Tensors()
}

// Intercept relays grads through an in-memory exchange and returns what the
// receiving side decodes. The result shares no memory with grads.
func Intercept(round int, grads []*tensor.Tensor) ([]*tensor.Tensor, error) {
	var wire bytes.Buffer
	if err := Upload(&wire, round, grads); err != nil {
		return nil, err
	}
	return Observe(&wire, round)
}
