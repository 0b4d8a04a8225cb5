// Package dataset supplies ground-truth images for a reconstruction run.
//
// Every Source serves raw images and integer class labels by index; the
// caller turns them into fixed-size tensors with ResizeCropToTensor.
package dataset

import (
	"errors"
	"fmt"
	"image"

	"gradleak/tensor"

	"golang.org/x/exp/rand"
)

// ErrUnsupported is returned for dataset names that are recognised but have
// no reader.
var ErrUnsupported = errors.New("dataset not supported")

// Source is an indexed collection of labelled images.
type Source interface {
	Get(i int) (image.Image, int, error)
	Len() int
}

// Kind names a dataset family.
type Kind int

const (
	CIFAR Kind = iota
	MNIST
	Omniglot
	Synthetic
)

func (k Kind) String() string {
	switch k {
	case CIFAR:
		return "CIFAR"
	case MNIST:
		return "MNIST"
	case Omniglot:
		return "Omniglot"
	case Synthetic:
		return "Synthetic"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind maps a configuration name to a Kind. SVHN is recognised but
// rejected since its distribution format has no reader here.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "CIFAR":
		return CIFAR, nil
	case "MNIST":
		return MNIST, nil
	case "Omniglot":
		return Omniglot, nil
	case "Synthetic":
		return Synthetic, nil
	case "SVHN":
		return 0, fmt.Errorf("%w: %s", ErrUnsupported, name)
	default:
		return 0, fmt.Errorf("unknown dataset %q: expected CIFAR, MNIST, Omniglot or Synthetic", name)
	}
}

// Open builds the Source of the given kind from files under root. Synthetic
// ignores root.
func Open(kind Kind, root string) (Source, error) {
	switch kind {
	case CIFAR:
		return OpenCIFAR100(root)
	case MNIST:
		return OpenMNIST(root)
	case Omniglot:
		return OpenOmniglot(root)
	case Synthetic:
		return NewSynthetic(DefaultSyntheticSize, DefaultSyntheticClasses, 1), nil
	default:
		return nil, fmt.Errorf("unknown dataset kind %v", kind)
	}
}

func checkIndex(i, n int) error {
	if i < 0 || i >= n {
		return fmt.Errorf("index %d out of range [0, %d)", i, n)
	}
	return nil
}

// SelectIndices picks the dataset entries forming the ground-truth batch.
// A list of exactly batchSize indices is used as given, as is a single
// non-negative index when batchSize is 1. Otherwise batchSize indices are
// drawn uniformly with replacement from [0, n).
func SelectIndices(index []int, batchSize, n int, rng *rand.Rand) ([]int, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	if n <= 0 {
		return nil, errors.New("dataset is empty")
	}
	if len(index) == batchSize && (batchSize > 1 || index[0] >= 0) {
		out := make([]int, batchSize)
		for i, idx := range index {
			if err := checkIndex(idx, n); err != nil {
				return nil, err
			}
			out[i] = idx
		}
		return out, nil
	}
	out := make([]int, batchSize)
	for i := range out {
		out[i] = rng.Intn(n)
	}
	return out, nil
}

// LoadBatch fetches the given entries and stacks them into a
// [len(indices), 3, size, size] tensor together with their labels.
func LoadBatch(src Source, indices []int, size int) (*tensor.Tensor, []int, error) {
	batch := tensor.New(len(indices), 3, size, size)
	labels := make([]int, len(indices))
	stride := 3 * size * size
	for i, idx := range indices {
		img, label, err := src.Get(idx)
		if err != nil {
			return nil, nil, fmt.Errorf("load entry %d: %w", idx, err)
		}
		t, err := ResizeCropToTensor(img, size)
		if err != nil {
			return nil, nil, fmt.Errorf("preprocess entry %d: %w", idx, err)
		}
		copy(batch.Data[i*stride:(i+1)*stride], t.Data)
		labels[i] = label
	}
	return batch, labels, nil
}
