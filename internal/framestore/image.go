package framestore

import (
	"image"
	"image/draw"
)

// flattenAlpha normalizes a decoded image that unexpectedly carries an
// alpha channel by compositing it over an opaque black background.
// Guards against upstream format drift; fully opaque images pass through
// unchanged.
func flattenAlpha(img image.Image) image.Image {
	type opaquer interface{ Opaque() bool }
	if o, ok := img.(opaquer); ok && o.Opaque() {
		return img
	}

	bounds := img.Bounds()
	flat := image.NewRGBA(bounds)
	draw.Draw(flat, bounds, image.Black, image.Point{}, draw.Src)
	draw.Draw(flat, bounds, img, bounds.Min, draw.Over)
	return flat
}
