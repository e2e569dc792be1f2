// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJaroWinkler(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"MARTHA", "MARHTA", 0.9611111111111111},
		{"DWAYNE", "DUANE", 0.84},
		{"DIXON", "DICKSONX", 0.8133333333333332},
		{"CRATE", "TRACE", 0.7333333333333334},
		{"Kitale Hospital", "Kitale Hosp", 0.9466666666666667},
		{"Kitale", "Kitale Hospital", 0.88},
		{"Mbagathi District Hospital", "Mbagathi Hospital", 0.895475113122172},
		{"Kenyatta National Hospital", "Kenyatta Hosp", 0.8846153846153847},
		{"Kisumu County Hospital", "Machakos Level 5", 0.3799242424242424},
		{"Thika Level 5 Hospital", "Thika Lvl 5 Hospital", 0.9818181818181818},
		{"abc", "xyz", 0},
		{"ab", "ba", 0},
		{"a", "a", 1},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.InDelta(t, tt.want, JaroWinkler(tt.a, tt.b), 1e-12)
		})
	}
}

func TestJaroWinklerIdentical(t *testing.T) {
	for _, s := range []string{"x", "Kitale Hospital", "Moi Teaching & Referral", "Dispensary ñ"} {
		assert.Equal(t, 1.0, JaroWinkler(s, s), s)
	}
}

func TestJaroWinklerEmpty(t *testing.T) {
	assert.Equal(t, 0.0, JaroWinkler("", ""))
	assert.Equal(t, 0.0, JaroWinkler("", "Kitale"))
	assert.Equal(t, 0.0, JaroWinkler("Kitale", ""))
}

func TestJaroWinklerSymmetric(t *testing.T) {
	words := []string{
		"Kitale Hospital", "Kitale Hosp", "Kitale", "MARTHA", "MARHTA",
		"DWAYNE", "DUANE", "DIXON", "DICKSONX", "CRATE", "TRACE",
		"Nairobi West", "Nairobi West Hospital", "Machakos Level 5", "",
	}
	for _, a := range words {
		for _, b := range words {
			assert.Equal(t, JaroWinkler(a, b), JaroWinkler(b, a), "%q vs %q", a, b)
		}
	}
}

func TestJaroWinklerCaseSensitive(t *testing.T) {
	assert.Less(t, JaroWinkler("kitale hospital", "KITALE HOSPITAL"), 1.0)
}

func TestJaroWinklerPrefixCap(t *testing.T) {
	// Shared prefix of 6 is boosted as if it were 4.
	a, b := "ABCDEFxx", "ABCDEFyy"
	var s scorer
	jaro := func() float64 {
		c := 6.0
		return (c/8 + c/8 + 1) / 3
	}()
	want := jaro + 4*0.1*(1-jaro)
	assert.InDelta(t, want, s.similarity([]rune(a), []rune(b)), 1e-12)
}

func TestScorerReusesBuffers(t *testing.T) {
	var s scorer
	long := []rune("Moi Teaching and Referral Hospital")
	short := []rune("Moi")
	first := s.similarity(long, short)
	_ = s.similarity([]rune("CRATE"), []rune("TRACE"))
	assert.Equal(t, first, s.similarity(long, short))
}
