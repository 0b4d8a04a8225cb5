package dataset

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
)

const (
	idxImageMagic = 0x00000803
	idxLabelMagic = 0x00000801
)

// MNISTSet holds an IDX image file and its label file in memory.
type MNISTSet struct {
	rows, cols int
	pixels     []byte
	labels     []byte
}

// OpenMNIST reads the training IDX pair from root, accepting plain or
// gzipped files.
func OpenMNIST(root string) (*MNISTSet, error) {
	images, err := readMaybeGzip(filepath.Join(root, "train-images-idx3-ubyte"))
	if err != nil {
		return nil, fmt.Errorf("open MNIST images: %w", err)
	}
	labels, err := readMaybeGzip(filepath.Join(root, "train-labels-idx1-ubyte"))
	if err != nil {
		return nil, fmt.Errorf("open MNIST labels: %w", err)
	}
	return NewMNIST(images, labels)
}

func readMaybeGzip(path string) ([]byte, error) {
	if raw, err := os.ReadFile(path); err == nil {
		return raw, nil
	}
	f, err := os.Open(path + ".gz")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

type idxImageHeader struct {
	Magic, Count, Rows, Cols uint32
}

type idxLabelHeader struct {
	Magic, Count uint32
}

// NewMNIST parses IDX image and label contents.
func NewMNIST(images, labels []byte) (*MNISTSet, error) {
	var ih idxImageHeader
	if err := binary.Read(bytes.NewReader(images), binary.BigEndian, &ih); err != nil {
		return nil, fmt.Errorf("MNIST image header: %w", err)
	}
	if ih.Magic != idxImageMagic {
		return nil, fmt.Errorf("MNIST image magic %#x", ih.Magic)
	}
	var lh idxLabelHeader
	if err := binary.Read(bytes.NewReader(labels), binary.BigEndian, &lh); err != nil {
		return nil, fmt.Errorf("MNIST label header: %w", err)
	}
	if lh.Magic != idxLabelMagic {
		return nil, fmt.Errorf("MNIST label magic %#x", lh.Magic)
	}
	if ih.Count != lh.Count {
		return nil, fmt.Errorf("MNIST: %d images but %d labels", ih.Count, lh.Count)
	}
	n, rows, cols := int(ih.Count), int(ih.Rows), int(ih.Cols)
	pixels := images[16:]
	if len(pixels) < n*rows*cols || len(labels)-8 < n {
		return nil, fmt.Errorf("MNIST: truncated data for %d entries", n)
	}
	return &MNISTSet{rows: rows, cols: cols, pixels: pixels[:n*rows*cols], labels: labels[8 : 8+n]}, nil
}

func (m *MNISTSet) Len() int { return len(m.labels) }

func (m *MNISTSet) Get(i int) (image.Image, int, error) {
	if err := checkIndex(i, m.Len()); err != nil {
		return nil, 0, err
	}
	size := m.rows * m.cols
	img := image.NewGray(image.Rect(0, 0, m.cols, m.rows))
	copy(img.Pix, m.pixels[i*size:(i+1)*size])
	return img, int(m.labels[i]), nil
}
