package proctor

// SkinRatio returns the fraction of pixels matching a coarse skin-tone
// heuristic. This is a placeholder-grade presence check, not a security
// control; it exists so the rest of the pipeline has a real signal to
// classify, and a stronger model can replace it behind the Classifier
// without touching the aggregator or submission logic.
func SkinRatio(f Frame) float64 {
	if len(f.Pixels) < 4 {
		return 0
	}

	total := len(f.Pixels) / 4
	skin := 0

	for i := 0; i+3 < len(f.Pixels); i += 4 {
		r := int(f.Pixels[i])
		g := int(f.Pixels[i+1])
		b := int(f.Pixels[i+2])

		if r > 95 && g > 40 && b > 20 &&
			max(r, g, b)-min(r, g, b) > 15 &&
			absInt(r-g) > 15 && r > g && r > b {
			skin++
		}
	}

	return float64(skin) / float64(total)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
