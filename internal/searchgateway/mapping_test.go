package searchgateway

import "testing"

func TestJoinParseFloatsRoundTrip(t *testing.T) {
	in := []float32{0.1, -2.5, 3}
	out := parseFloats(joinFloats(in))
	if len(out) != len(in) {
		t.Fatalf("length mismatch: got %v want %v", out, in)
	}
	for i := range in {
		diff := float64(out[i]) - float64(in[i])
		if diff < -1e-5 || diff > 1e-5 {
			t.Fatalf("index %d: got %v want %v", i, out[i], in[i])
		}
	}
}

func TestJoinFloatsEmpty(t *testing.T) {
	if joinFloats(nil) != "" {
		t.Fatalf("expected empty string for nil input")
	}
	if got := parseFloats(""); got != nil {
		t.Fatalf("expected nil for empty string, got %v", got)
	}
}

func TestSplitFilledRoundTrip(t *testing.T) {
	in := []string{"alice", "bob", "carol"}
	joined := in[0] + listSep + in[1] + listSep + in[2]
	out := splitFilled(joined)
	if len(out) != 3 || out[1] != "bob" {
		t.Fatalf("unexpected split result: %v", out)
	}
}

func TestToQdrantFilterNilWhenEmpty(t *testing.T) {
	if toQdrantFilter(Filter{}) != nil {
		t.Fatalf("expected nil filter for empty Filter")
	}
}

func TestToQdrantFilterBuildsEqAndNe(t *testing.T) {
	f := toQdrantFilter(Filter{Eq: map[string]string{"source": "blob"}, Ne: map[string]string{"status": "deleted"}})
	if f == nil || len(f.Must) != 1 || len(f.MustNot) != 1 {
		t.Fatalf("expected one must and one must-not condition, got %#v", f)
	}
}
