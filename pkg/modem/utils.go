package modem

func dotProduct(a, b []float64) float64 {
	s := 0.0
	for i := range min(len(a), len(b)) {
		s += a[i] * b[i]
	}
	return s
}

func energy(a []float64) float64 {
	return dotProduct(a, a)
}
