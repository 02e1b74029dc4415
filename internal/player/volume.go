package player

import "math"

// percentToGain maps a 0-100 volume to beep's base-2 gain: 100 -> 0,
// 50 -> -1, 25 -> -2 and 0 -> -10 (silent).
func percentToGain(percent int) float64 {
	percent = clampPercent(percent)
	if percent == 0 {
		return -10
	}
	return math.Log2(float64(percent) / 100)
}
