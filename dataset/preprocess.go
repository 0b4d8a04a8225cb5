package dataset

import (
	"fmt"
	"image"

	"gradleak/tensor"

	"golang.org/x/image/draw"
)

// ResizeCropToTensor scales img bilinearly so its shorter side equals size,
// crops the centre size x size square and returns it as a [3, size, size]
// tensor with values in [0, 1]. Gray images are replicated over the three
// channels.
func ResizeCropToTensor(img image.Image, size int) (*tensor.Tensor, error) {
	if size <= 0 {
		return nil, fmt.Errorf("target size must be positive, got %d", size)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("empty image %v", b)
	}

	rw, rh := size, size
	if w < h {
		rh = h * size / w
	} else {
		rw = w * size / h
	}
	resized := image.NewRGBA(image.Rect(0, 0, rw, rh))
	if rw == w && rh == h {
		draw.Draw(resized, resized.Bounds(), img, b.Min, draw.Src)
	} else {
		draw.BiLinear.Scale(resized, resized.Bounds(), img, b, draw.Src, nil)
	}

	left := int(float64(rw-size)/2 + 0.5)
	top := int(float64(rh-size)/2 + 0.5)
	out := tensor.New(3, size, size)
	plane := size * size
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			off := resized.PixOffset(left+x, top+y)
			for c := 0; c < 3; c++ {
				out.Data[c*plane+y*size+x] = float64(resized.Pix[off+c]) / 255
			}
		}
	}
	return out, nil
}

// ToImage converts a [3, H, W] tensor to an opaque RGBA image, clamping
// values to [0, 1].
func ToImage(t *tensor.Tensor) (image.Image, error) {
	if len(t.Shape) != 3 || t.Shape[0] != 3 {
		return nil, fmt.Errorf("want a [3,H,W] tensor, got shape %v", t.Shape)
	}
	h, w := t.Shape[1], t.Shape[2]
	plane := h * w
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := img.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				img.Pix[off+c] = toByte(t.Data[c*plane+y*w+x])
			}
			img.Pix[off+3] = 0xff
		}
	}
	return img, nil
}

// BatchToImages converts every image of a [N, 3, H, W] batch.
func BatchToImages(batch *tensor.Tensor) ([]image.Image, error) {
	if len(batch.Shape) != 4 {
		return nil, fmt.Errorf("want a [N,3,H,W] batch, got shape %v", batch.Shape)
	}
	n := batch.Shape[0]
	stride := tensor.Size(batch.Shape[1:])
	out := make([]image.Image, n)
	for i := 0; i < n; i++ {
		one, err := tensor.FromData(batch.Data[i*stride:(i+1)*stride], batch.Shape[1:]...)
		if err != nil {
			return nil, err
		}
		if out[i], err = ToImage(one); err != nil {
			return nil, err
		}
	}
	return out, nil
}
