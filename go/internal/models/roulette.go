package models

// RouletteColor of a wheel pocket.
type RouletteColor string

const (
	ColorGreen RouletteColor = "GREEN"
	ColorRed   RouletteColor = "RED"
	ColorBlack RouletteColor = "BLACK"
)

// RouletteWheelOrder is the physical pocket layout, used for the spinner's
// resting position.
var RouletteWheelOrder = []int{
	0, 32, 15, 19, 4, 21, 2, 25, 17, 34, 6, 27, 13, 36, 11, 30, 8, 23, 10,
	5, 24, 16, 33, 1, 20, 14, 31, 9, 22, 18, 29, 7, 28, 12, 35, 3, 26,
}

var redNumbers = map[int]bool{
	1: true, 3: true, 5: true, 7: true, 9: true, 12: true, 14: true,
	16: true, 18: true, 19: true, 21: true, 23: true, 25: true, 27: true,
	30: true, 32: true, 34: true, 36: true,
}

// NumberColor returns the color of a roulette number (0-36).
func NumberColor(n int) RouletteColor {
	switch {
	case n == 0:
		return ColorGreen
	case redNumbers[n]:
		return ColorRed
	default:
		return ColorBlack
	}
}
