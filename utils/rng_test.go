package utils_test

import (
	"sort"
	"testing"

	"github.com/Hunternif/cards-against-animals-sub000/utils"
)

func TestFromStrSeed_Deterministic(t *testing.T) {
	a := utils.FromStrSeed("lobby-42")
	b := utils.FromStrSeed("lobby-42")
	for i := 0; i < 100; i++ {
		x, y := a.RandomInt(), b.RandomInt()
		if x != y {
			t.Fatalf("draw %d diverged: %d != %d", i, x, y)
		}
	}
}

func TestFromStrSeed_DifferentSeedsDiverge(t *testing.T) {
	a := utils.FromStrSeed("alpha")
	b := utils.FromStrSeed("beta")
	same := 0
	for i := 0; i < 20; i++ {
		if a.RandomInt() == b.RandomInt() {
			same++
		}
	}
	if same == 20 {
		t.Fatal("different seeds produced identical sequences")
	}
}

func TestRandomFloat_Range(t *testing.T) {
	r := utils.FromStrSeed("floats")
	for i := 0; i < 10000; i++ {
		f := r.RandomFloat()
		if f < 0 || f >= 1 {
			t.Fatalf("RandomFloat out of range: %f", f)
		}
	}
}

func TestRandomIntClamped(t *testing.T) {
	tests := []struct {
		name     string
		min, max int
	}{
		{"single value", 5, 5},
		{"small range", 0, 3},
		{"negative range", -4, 4},
		{"swapped bounds", 10, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			lo, hi := tc.min, tc.max
			if hi < lo {
				lo, hi = hi, lo
			}
			r := utils.FromStrSeed(tc.name)
			seen := map[int]bool{}
			for i := 0; i < 2000; i++ {
				v := r.RandomIntClamped(tc.min, tc.max)
				if v < lo || v > hi {
					t.Fatalf("value %d outside [%d, %d]", v, lo, hi)
				}
				seen[v] = true
			}
			if len(seen) != hi-lo+1 {
				t.Errorf("expected every value in range to appear, saw %d of %d", len(seen), hi-lo+1)
			}
		})
	}
}

func TestShuffleArray_Permutation(t *testing.T) {
	arr := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	utils.ShuffleArray(utils.FromStrSeed("shuffle"), arr)

	sorted := append([]int(nil), arr...)
	sort.Ints(sorted)
	for i, v := range sorted {
		if v != i+1 {
			t.Fatalf("shuffle lost or duplicated elements: %v", arr)
		}
	}
}

func TestShuffleArray_SameSeedSameOrder(t *testing.T) {
	a := []string{"a", "b", "c", "d", "e", "f"}
	b := append([]string(nil), a...)
	utils.ShuffleArray(utils.FromStrSeed("x"), a)
	utils.ShuffleArray(utils.FromStrSeed("x"), b)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed gave different orders: %v vs %v", a, b)
		}
	}
}

func TestShuffleArray_EmptyAndSingle(t *testing.T) {
	utils.ShuffleArray(utils.FromStrSeed("e"), []int{})
	one := []int{7}
	utils.ShuffleArray(utils.FromStrSeed("e"), one)
	if one[0] != 7 {
		t.Fatalf("single element changed: %v", one)
	}
}
