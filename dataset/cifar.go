package dataset

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
)

const (
	cifarSide   = 32
	cifarPixels = cifarSide * cifarSide
	// coarse label, fine label, then the red, green and blue planes
	cifar100Record = 2 + 3*cifarPixels
)

// CIFAR100 reads the binary distribution of CIFAR-100 and serves fine labels.
type CIFAR100 struct {
	raw []byte
	n   int
}

// OpenCIFAR100 loads train.bin from root or root/cifar-100-binary.
func OpenCIFAR100(root string) (*CIFAR100, error) {
	var lastErr error
	for _, p := range []string{
		filepath.Join(root, "cifar-100-binary", "train.bin"),
		filepath.Join(root, "train.bin"),
	} {
		raw, err := os.ReadFile(p)
		if err != nil {
			lastErr = err
			continue
		}
		return NewCIFAR100(raw)
	}
	return nil, fmt.Errorf("open CIFAR-100: %w", lastErr)
}

// NewCIFAR100 wraps an in-memory copy of a CIFAR-100 binary file.
func NewCIFAR100(raw []byte) (*CIFAR100, error) {
	if len(raw) == 0 || len(raw)%cifar100Record != 0 {
		return nil, fmt.Errorf("CIFAR-100: %d bytes is not a whole number of %d byte records", len(raw), cifar100Record)
	}
	return &CIFAR100{raw: raw, n: len(raw) / cifar100Record}, nil
}

func (c *CIFAR100) Len() int { return c.n }

func (c *CIFAR100) Get(i int) (image.Image, int, error) {
	if err := checkIndex(i, c.n); err != nil {
		return nil, 0, err
	}
	rec := c.raw[i*cifar100Record : (i+1)*cifar100Record]
	label := int(rec[1])
	planes := rec[2:]
	img := image.NewRGBA(image.Rect(0, 0, cifarSide, cifarSide))
	for p := 0; p < cifarPixels; p++ {
		img.SetRGBA(p%cifarSide, p/cifarSide, color.RGBA{
			R: planes[p],
			G: planes[cifarPixels+p],
			B: planes[2*cifarPixels+p],
			A: 0xff,
		})
	}
	return img, label, nil
}
