package cpu

// transposeTile is the edge of the square tiles copied by one work item.
const transposeTile = 32

// transpose writes dst(x, y) = src(y, x) one tile at a time.
// dst has the swapped dimensions of src.
func (b *Backend) transpose(src, dst *hostBuffer) {
	tilesX := (src.width + transposeTile - 1) / transposeTile
	tilesY := (src.height + transposeTile - 1) / transposeTile

	b.pool.ForEach(tilesX*tilesY, func(i int) {
		x0 := (i % tilesX) * transposeTile
		y0 := (i / tilesX) * transposeTile
		x1 := min(x0+transposeTile, src.width)
		y1 := min(y0+transposeTile, src.height)

		for y := y0; y < y1; y++ {
			row := src.data[y*src.width:]
			for x := x0; x < x1; x++ {
				dst.data[x*dst.width+y] = row[x]
			}
		}
	})
}
