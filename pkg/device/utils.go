package device

import (
	"math"

	"golang.org/x/exp/rand"
)

func cleari32(a []int32) {
	for i := range a {
		a[i] = 0
	}
}

func randi32(a []int32) {
	for i := range a {
		a[i] = rand.Int31()
	}
}

// noisei32 adds uniform noise of the given fraction of full scale to a.
func noisei32(r *rand.Rand, a []int32, level float64) {
	amplitude := level * math.MaxInt32
	for i := range a {
		a[i] = addi32(a[i], int32((2*r.Float64()-1)*amplitude))
	}
}

// addi32 adds with saturation.
func addi32(a, b int32) int32 {
	sum := int64(a) + int64(b)
	if sum > math.MaxInt32 {
		return math.MaxInt32
	} else if sum < math.MinInt32 {
		return math.MinInt32
	}
	return int32(sum)
}

func sumi32(a, b, c []int32) {
	for i := range a {
		c[i] = addi32(a[i], b[i])
	}
}

func alloci32(n int) []int32 {
	return make([]int32, n)
}
