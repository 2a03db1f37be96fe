package blueprint

import (
	"bufio"
	"fmt"
	"io"
)

const glyphs = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Render writes b as horizontal slices from the top layer down. Each slice is
// a z-by-x table where '.' marks an empty cell and any other glyph identifies
// a sub-design (ids wrap around the glyph table).
func (b *Blueprint) Render(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for y := b.dims.Y - 1; y >= 0; y-- {
		fmt.Fprintf(bw, "y=%d\n", y)
		for z := 0; z < b.dims.Z; z++ {
			for x := 0; x < b.dims.X; x++ {
				v := b.cell(Coord{X: x, Y: y, Z: z})
				if v == 0 {
					_ = bw.WriteByte('.')
					continue
				}
				_ = bw.WriteByte(glyphs[1+(v-1)%(len(glyphs)-1)])
			}
			_ = bw.WriteByte('\n')
		}
	}
	return bw.Flush()
}
