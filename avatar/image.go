package avatar

import (
	"image"

	"github.com/nfnt/resize"
)

// Quality 头像 webp 编码质量
const Quality = 90

// Fit 最长边超过 maxSize 时等比缩小，其余情况原样返回；maxSize <= 0 表示不限制
func Fit(img image.Image, maxSize int) image.Image {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if maxSize <= 0 || max(w, h) <= maxSize {
		return img
	}
	if w >= h {
		return resize.Resize(uint(maxSize), 0, img, resize.Lanczos3)
	}
	return resize.Resize(0, uint(maxSize), img, resize.Lanczos3)
}
