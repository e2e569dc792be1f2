// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reconcile

const (
	winklerPrefixCap = 4
	winklerScaling   = 0.1
	winklerBoostFrom = 0.7
)

// JaroWinkler returns the Jaro-Winkler similarity of a and b in [0, 1],
// comparing Unicode code points case-sensitively. Either string empty
// yields 0.
func JaroWinkler(a, b string) float64 {
	var s scorer
	return s.similarity([]rune(a), []rune(b))
}

// scorer keeps the match-flag buffers between comparisons so the fuzzy pass
// allocates only when a longer string than any seen so far arrives.
type scorer struct {
	flagsA []bool
	flagsB []bool
}

func (s *scorer) similarity(a, b []rune) float64 {
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0
	}

	fa := resetFlags(&s.flagsA, la)
	fb := resetFlags(&s.flagsB, lb)

	window := max(la, lb)/2 - 1
	if window < 0 {
		window = 0
	}

	common := 0
	for i := 0; i < la; i++ {
		lo := max(0, i-window)
		hi := min(i+window, lb-1)
		for j := lo; j <= hi; j++ {
			if !fb[j] && b[j] == a[i] {
				fa[i], fb[j] = true, true
				common++
				break
			}
		}
	}
	if common == 0 {
		return 0
	}

	transpositions := 0
	k := 0
	for i := 0; i < la; i++ {
		if !fa[i] {
			continue
		}
		for !fb[k] {
			k++
		}
		if a[i] != b[k] {
			transpositions++
		}
		k++
	}
	transpositions /= 2

	c := float64(common)
	w := (c/float64(la) + c/float64(lb) + (c-float64(transpositions))/c) / 3

	if w > winklerBoostFrom {
		n := min(la, lb, winklerPrefixCap)
		p := 0
		for p < n && a[p] == b[p] {
			p++
		}
		if p > 0 {
			w += float64(p) * winklerScaling * (1 - w)
		}
	}
	return w
}

func resetFlags(buf *[]bool, n int) []bool {
	if cap(*buf) < n {
		*buf = make([]bool, n)
	}
	f := (*buf)[:n]
	for i := range f {
		f[i] = false
	}
	return f
}
