package evo

import (
	"math"
	"math/rand"
	"testing"
)

func TestBuildCDFProportional(t *testing.T) {
	got := BuildCDF([]int{1, 3, 1, 5})
	want := []float64{0.1, 0.4, 0.5, 1.0}
	if len(got) != len(want) {
		t.Fatalf("unexpected length: got=%d want=%d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-4 {
			t.Fatalf("cdf[%d]=%f want=%f", i, got[i], want[i])
		}
	}
	if got[len(got)-1] != 1.0 {
		t.Fatalf("last entry must be exactly 1.0, got %v", got[len(got)-1])
	}
}

func TestBuildCDFAllZeroIsUniform(t *testing.T) {
	got := BuildCDF([]int{0, 0, 0, 0, 0})
	for i, v := range got {
		want := float64(i+1) / 5
		if math.Abs(v-want) > 1e-12 {
			t.Fatalf("cdf[%d]=%f want=%f", i, v, want)
		}
		if i > 0 && v <= got[i-1] {
			t.Fatalf("uniform cdf must be strictly increasing at %d", i)
		}
	}
	if got[len(got)-1] != 1.0 {
		t.Fatalf("last entry must be 1.0, got %v", got[len(got)-1])
	}
}

func TestBuildCDFEmpty(t *testing.T) {
	if got := BuildCDF(nil); len(got) != 0 {
		t.Fatalf("expected empty cdf, got %v", got)
	}
	if idx := WeightedSample(rand.New(rand.NewSource(1)), nil); idx != -1 {
		t.Fatalf("expected -1 for empty cdf, got %d", idx)
	}
}

func TestWeightedSampleDegenerate(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		if idx := WeightedSample(rng, []float64{1.0}); idx != 0 {
			t.Fatalf("single entry cdf returned %d", idx)
		}
		if idx := WeightedSample(rng, []float64{0.0, 0.0, 1.0}); idx != 2 {
			t.Fatalf("zero-weight prefix returned %d", idx)
		}
	}
}

func TestWeightedSampleConverges(t *testing.T) {
	if testing.Short() {
		t.Skip("long sampling run")
	}
	rng := rand.New(rand.NewSource(42))
	cdf := []float64{0.1, 0.5, 0.9, 1.0}
	want := []float64{0.1, 0.4, 0.4, 0.1}
	const draws = 1_000_000

	counts := make([]int, len(cdf))
	for i := 0; i < draws; i++ {
		counts[WeightedSample(rng, cdf)]++
	}
	for i, c := range counts {
		freq := float64(c) / draws
		if math.Abs(freq-want[i]) > 0.01 {
			t.Fatalf("bucket %d frequency=%f want=%f", i, freq, want[i])
		}
	}
}

func rankedFixture(scores ...int) []ScoredBlueprint {
	out := make([]ScoredBlueprint, len(scores))
	for i, s := range scores {
		out[i] = ScoredBlueprint{ID: individualID(0, i), Score: s}
	}
	return out
}

func TestCDFSelectorNeverPicksZeroScores(t *testing.T) {
	sampler, err := CDFSelector{}.Prepare(rankedFixture(5, 3, 0, 0))
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 500; i++ {
		if idx := sampler.Sample(rng); idx > 1 {
			t.Fatalf("picked zero-score individual %d", idx)
		}
	}

	if _, err := (CDFSelector{}).Prepare(nil); err == nil {
		t.Fatal("expected error for empty population")
	}
	if _, err := (CDFSelector{}).Prepare(rankedFixture(1, -1)); err == nil {
		t.Fatal("expected error for negative score")
	}
}

func TestEliteSelectorStaysInEliteSet(t *testing.T) {
	sampler, err := EliteSelector{Count: 2}.Prepare(rankedFixture(9, 8, 7, 6))
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 200; i++ {
		if idx := sampler.Sample(rng); idx < 0 || idx >= 2 {
			t.Fatalf("picked outside elite set: %d", idx)
		}
	}
	if _, err := (EliteSelector{Count: 5}).Prepare(rankedFixture(1, 2)); err == nil {
		t.Fatal("expected invalid elite count error")
	}
}

func TestTournamentSelectorPrefersFitter(t *testing.T) {
	ranked := rankedFixture(10, 1, 1, 1, 1, 1)
	sampler, err := TournamentSelector{TournamentSize: 6}.Prepare(ranked)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	rng := rand.New(rand.NewSource(5))
	top := 0
	for i := 0; i < 1000; i++ {
		if sampler.Sample(rng) == 0 {
			top++
		}
	}
	// P(best drawn at least once in 6 draws from 6) ~ 0.665.
	if top < 550 {
		t.Fatalf("tournament picked the fittest only %d/1000 times", top)
	}
}

func TestSelectorFromName(t *testing.T) {
	for _, name := range SelectorNames() {
		sel, err := SelectorFromName(name, 2)
		if err != nil {
			t.Fatalf("resolve %s: %v", name, err)
		}
		if sel.Name() != name {
			t.Fatalf("unexpected selector name: got=%s want=%s", sel.Name(), name)
		}
	}
	if sel, err := SelectorFromName("", 0); err != nil || sel.Name() != "cdf" {
		t.Fatalf("expected cdf default, got %v err=%v", sel, err)
	}
	if _, err := SelectorFromName("roulette", 1); err == nil {
		t.Fatal("expected unknown selector error")
	}
}
