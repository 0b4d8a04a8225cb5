// Package metrics scores a reconstructed image against its ground truth.
// Images are [C, H, W] tensors with values nominally in [0, DataRange].
package metrics

import (
	"fmt"
	"math"

	"gradleak/tensor"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DataRange is the dynamic range assumed for every score.
const DataRange = 1.0

// SSIM constants.
const (
	WindowSize = 7
	k1         = 0.01
	k2         = 0.03
)

// Scores groups the three quality numbers recorded per snapshot.
type Scores struct {
	PSNR float64
	SSIM float64
	MSE  float64
}

// Compare computes every score between truth and guess.
func Compare(truth, guess *tensor.Tensor) (Scores, error) {
	mse, err := MSE(truth, guess)
	if err != nil {
		return Scores{}, err
	}
	ssim, err := SSIM(truth, guess)
	if err != nil {
		return Scores{}, err
	}
	return Scores{PSNR: psnrFromMSE(mse), SSIM: ssim, MSE: mse}, nil
}

func check(truth, guess *tensor.Tensor) error {
	if len(truth.Shape) != 3 {
		return fmt.Errorf("metrics: want a [C,H,W] image, got shape %v", truth.Shape)
	}
	if !tensor.SameShape(truth, guess) {
		return fmt.Errorf("metrics: shape %v vs %v", truth.Shape, guess.Shape)
	}
	return nil
}

// MSE is the mean squared difference over every pixel and channel.
func MSE(truth, guess *tensor.Tensor) (float64, error) {
	if err := check(truth, guess); err != nil {
		return 0, err
	}
	diff := make([]float64, len(truth.Data))
	floats.SubTo(diff, truth.Data, guess.Data)
	return floats.Dot(diff, diff) / float64(len(diff)), nil
}

// PSNR is the peak signal to noise ratio in decibels. Identical images score
// +Inf.
func PSNR(truth, guess *tensor.Tensor) (float64, error) {
	mse, err := MSE(truth, guess)
	if err != nil {
		return 0, err
	}
	return psnrFromMSE(mse), nil
}

func psnrFromMSE(mse float64) float64 {
	if mse == 0 {
		return math.Inf(1)
	}
	return 10 * math.Log10(DataRange*DataRange/mse)
}

// SSIM is the mean structural similarity over every WindowSize x WindowSize
// window that fits inside the image, averaged over channels. Window
// statistics use the sample (n-1) variance and covariance.
func SSIM(truth, guess *tensor.Tensor) (float64, error) {
	if err := check(truth, guess); err != nil {
		return 0, err
	}
	c, h, w := truth.Shape[0], truth.Shape[1], truth.Shape[2]
	if h < WindowSize || w < WindowSize {
		return 0, fmt.Errorf("metrics: image %dx%d smaller than the %dx%d SSIM window", h, w, WindowSize, WindowSize)
	}
	c1 := (k1 * DataRange) * (k1 * DataRange)
	c2 := (k2 * DataRange) * (k2 * DataRange)

	n := WindowSize * WindowSize
	a := make([]float64, n)
	b := make([]float64, n)
	total := 0.0
	for ch := 0; ch < c; ch++ {
		plane := ch * h * w
		sum := 0.0
		for y := 0; y+WindowSize <= h; y++ {
			for x := 0; x+WindowSize <= w; x++ {
				for dy := 0; dy < WindowSize; dy++ {
					row := plane + (y+dy)*w + x
					copy(a[dy*WindowSize:(dy+1)*WindowSize], truth.Data[row:row+WindowSize])
					copy(b[dy*WindowSize:(dy+1)*WindowSize], guess.Data[row:row+WindowSize])
				}
				ma, va := stat.MeanVariance(a, nil)
				mb, vb := stat.MeanVariance(b, nil)
				cov := stat.Covariance(a, b, nil)
				sum += ((2*ma*mb + c1) * (2*cov + c2)) /
					((ma*ma + mb*mb + c1) * (va + vb + c2))
			}
		}
		total += sum / float64((h-WindowSize+1)*(w-WindowSize+1))
	}
	return total / float64(c), nil
}
