package fixed

import "testing"

func TestParseAndString(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"300", "300"},
		{"0.1", "0.1"},
		{"-2.5", "-2.5"},
		{"0.000000000000000005", "0.000000000000000005"},
		{"1.0", "1"},
	}
	for _, c := range cases {
		n, err := Parse(c.in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.in, err)
		}
		if got := n.String(); got != c.want {
			t.Fatalf("Parse(%q).String() = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "abc", "1..2"} {
		if _, err := Parse(in); err == nil {
			t.Fatalf("Parse(%q): expected error", in)
		}
	}
}

func TestMulDescales(t *testing.T) {
	// 20 * 0.5 = 10
	got := FromInt(20).Mul(MustParse("0.5"))
	if !got.Equal(FromInt(10)) {
		t.Fatalf("20 * 0.5 = %s, want 10", got)
	}
}

func TestMulTruncatesTowardZero(t *testing.T) {
	// 1e-18 * 0.5 truncates to 0, never rounds up
	got := MustParse("0.000000000000000001").Mul(MustParse("0.5"))
	if !got.IsZero() {
		t.Fatalf("expected truncation to zero, got %s", got)
	}
}

func TestQuoTickCount(t *testing.T) {
	// floor(20 / 0.1) = 200 plain ticks
	gap := FromInt(300).Sub(FromInt(280))
	if got := gap.Quo(MustParse("0.1")); got != 200 {
		t.Fatalf("Quo = %d, want 200", got)
	}
	// floor, not round: floor(0.19 / 0.1) = 1
	if got := MustParse("0.19").Quo(MustParse("0.1")); got != 1 {
		t.Fatalf("Quo = %d, want 1", got)
	}
}

func TestQuoByZero(t *testing.T) {
	if got := FromInt(5).Quo(Zero()); got != 0 {
		t.Fatalf("Quo by zero = %d, want 0", got)
	}
}

func TestZeroValueUsable(t *testing.T) {
	var n Num
	if !n.IsZero() {
		t.Fatalf("zero value not zero")
	}
	if got := n.Add(FromInt(3)); !got.Equal(FromInt(3)) {
		t.Fatalf("0 + 3 = %s", got)
	}
}

func TestMinAndCompare(t *testing.T) {
	a, b := FromInt(5), FromInt(20)
	if !a.Min(b).Equal(a) {
		t.Fatalf("Min wrong")
	}
	if !a.LT(b) || !b.GT(a) || !a.LTE(a) || !b.GTE(b) {
		t.Fatalf("comparison helpers wrong")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	n := MustParse("12.375")
	b, err := n.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Num
	if err := back.UnmarshalJSON(b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(n) {
		t.Fatalf("round trip %s != %s", back, n)
	}
}
