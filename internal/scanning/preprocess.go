package scanning

import (
	"image"

	"github.com/disintegration/imaging"
)

// minOCRWidth is the narrowest image handed to Tesseract.
const minOCRWidth = 1000

// preprocessForOCR boosts thin thermal print so Tesseract can segment it.
func preprocessForOCR(img image.Image) *image.NRGBA {
	out := imaging.Grayscale(img)
	out = imaging.AdjustContrast(out, 50)
	out = imaging.AdjustBrightness(out, 10)
	out = imaging.Sharpen(out, 1.0)

	if w := out.Bounds().Dx(); w > 0 && w < minOCRWidth {
		out = imaging.Resize(out, minOCRWidth, 0, imaging.Lanczos)
	}
	return out
}
