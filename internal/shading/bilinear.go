package shading

import (
	"cogentcore.org/core/math32"
)

// BilinearResample filters the red channel of tex at uv with an explicit
// bilinear weighting of the four texels around uv*(W,H). All four fetches go
// through smp.Load, so the sampler only contributes its address modes and
// its own filter never runs.
//
// When uv*(W,H) is integral the result is exactly the top-left texel.
func BilinearResample(tex Texture, smp Sampler, uv math32.Vector2) float32 {
	w, h := tex.Size()
	size := math32.Vec2(float32(w), float32(h))

	tx := uv.X * size.X
	ty := uv.Y * size.Y
	ix := math32.Floor(tx)
	iy := math32.Floor(ty)
	fx := tx - ix
	fy := ty - iy

	tl := smp.Load(tex, math32.Vec2(ix/size.X, iy/size.Y)).X
	tr := smp.Load(tex, math32.Vec2((ix+1)/size.X, iy/size.Y)).X
	bl := smp.Load(tex, math32.Vec2(ix/size.X, (iy+1)/size.Y)).X
	br := smp.Load(tex, math32.Vec2((ix+1)/size.X, (iy+1)/size.Y)).X

	top := math32.Lerp(tl, tr, fx)
	bottom := math32.Lerp(bl, br, fx)
	return math32.Lerp(top, bottom, fy)
}
