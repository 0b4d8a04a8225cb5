package nn

import (
	"fmt"

	"gradleak/autograd"
	"gradleak/nn/layers"
)

// LeNetConfig sizes the LeNet classifier.
type LeNetConfig struct {
	Channels  int // input channels
	ImageSize int // input height and width
	Width     int // channels of every convolution
	Classes   int
}

// DefaultLeNet is the 3×32×32 → 100-class network used for CIFAR-100.
var DefaultLeNet = LeNetConfig{Channels: 3, ImageSize: 32, Width: 12, Classes: 100}

// LeNet is three sigmoid convolutions followed by a linear classifier.
type LeNet struct {
	Config LeNetConfig
	body   *Sequential
}

// NewLeNet builds the network with zero weights; apply an initializer before use.
func NewLeNet(c LeNetConfig) (*LeNet, error) {
	if c.Channels <= 0 || c.ImageSize <= 0 || c.Width <= 0 || c.Classes <= 0 {
		return nil, fmt.Errorf("lenet: invalid config %+v", c)
	}
	conv1 := layers.NewConv2D(c.Channels, c.Width, 5, 2, 2)
	conv2 := layers.NewConv2D(c.Width, c.Width, 5, 2, 2)
	conv3 := layers.NewConv2D(c.Width, c.Width, 5, 1, 2)

	h, w := c.ImageSize, c.ImageSize
	for _, conv := range []*layers.Conv2D{conv1, conv2, conv3} {
		h, w = conv.OutputSize(h, w)
		if h <= 0 || w <= 0 {
			return nil, fmt.Errorf("lenet: image size %d too small", c.ImageSize)
		}
	}
	fc := layers.NewLinear(c.Width*h*w, c.Classes)

	return &LeNet{
		Config: c,
		body: &Sequential{Layers: []Module{
			conv1, layers.NewSigmoid(),
			conv2, layers.NewSigmoid(),
			conv3, layers.NewSigmoid(),
			layers.NewFlatten(),
			fc,
		}},
	}, nil
}

// Forward maps images [N, Channels, ImageSize, ImageSize] to logits [N, Classes].
func (m *LeNet) Forward(x *autograd.Variable) (*autograd.Variable, error) {
	return m.body.Forward(x)
}

func (m *LeNet) Parameters() []*autograd.Variable {
	return m.body.Parameters()
}

// Layers exposes the layer stack in order.
func (m *LeNet) Layers() []Module {
	return m.body.Layers
}
