package board

import (
	"fmt"
	"image/color"
	"io"

	"github.com/notnil/chess"
	"github.com/notnil/chess/image"
)

var (
	markLastMove = color.RGBA{R: 0xf6, G: 0xe0, B: 0x5e, A: 0xff}
	markCheck    = color.RGBA{R: 0xe0, G: 0x4f, B: 0x4f, A: 0xff}
)

// WriteSVG renders b as an SVG image, flipped for o and marked with the last
// move and a checked king.
func WriteSVG(w io.Writer, b *chess.Board, o Orientation, theme Theme, ov Overlay) error {
	light, dark, err := theme.Colors()
	if err != nil {
		return err
	}
	var last, check []chess.Square
	for _, sq := range []chess.Square{ov.LastFrom, ov.LastTo} {
		if sq != chess.NoSquare {
			last = append(last, sq)
		}
	}
	if ov.Check != chess.NoSquare {
		check = append(check, ov.Check)
	}
	if err := image.SVG(w, b,
		image.SquareColors(light, dark),
		image.Perspective(o.Color()),
		image.MarkSquares(markLastMove, last...),
		image.MarkSquares(markCheck, check...),
	); err != nil {
		return fmt.Errorf("render svg: %w", err)
	}
	return nil
}
