package domain

import "testing"

func TestClassCountsRecordKeepsTallyInvariant(t *testing.T) {
	counts := NewClassCounts()
	counts.Record(ClassWT, true)
	counts.Record(ClassWT, false)
	counts.Record(ClassT1C5E5, true)

	for _, name := range ClassNames() {
		tally, ok := counts[name]
		if !ok {
			t.Fatalf("expected class %s to be present", name)
		}
		if tally.Total != tally.Viable+tally.NonViable {
			t.Fatalf("tally invariant broken for %s: %+v", name, tally)
		}
	}
	if counts[ClassWT].Total != 2 || counts[ClassT1C5C1].Total != 0 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}

func TestTallyViabilityRateZeroTotal(t *testing.T) {
	if rate := (Tally{}).ViabilityRate(); rate != 0 {
		t.Fatalf("expected 0 rate, got %v", rate)
	}
	if rate := (Tally{Total: 4, Viable: 3, NonViable: 1}).ViabilityRate(); rate != 75 {
		t.Fatalf("expected 75, got %v", rate)
	}
}

func TestClassCountsAddAndNormalize(t *testing.T) {
	a := ClassCounts{ClassWT: {Total: 2, Viable: 1, NonViable: 1}}
	b := NewClassCounts()
	b.Record(ClassWT, true)
	b.Record(ClassT1C5C1, false)

	sum := a.Add(b)
	if len(sum) != 3 {
		t.Fatalf("expected all classes after Add, got %d", len(sum))
	}
	if sum[ClassWT] != (Tally{Total: 3, Viable: 2, NonViable: 1}) {
		t.Fatalf("unexpected WT sum: %+v", sum[ClassWT])
	}
	if totals := sum.Totals(); totals.Total != 4 || totals.Viable != 2 {
		t.Fatalf("unexpected totals: %+v", totals)
	}
}
