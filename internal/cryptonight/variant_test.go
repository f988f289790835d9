package cryptonight

import "testing"

func TestParseVariant(t *testing.T) {
	cases := []struct {
		in   string
		want Variant
		ok   bool
	}{
		{"v6", V6, true},
		{"V6", V6, true},
		{"v7", V7, true},
		{"v8", V8, true},
		{"v9", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, ok := ParseVariant(c.in)
		if ok != c.ok {
			t.Fatalf("ParseVariant(%q) ok = %v, want %v", c.in, ok, c.ok)
		}
		if ok && got != c.want {
			t.Fatalf("ParseVariant(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestVariantString(t *testing.T) {
	if V6.String() != "v6" || V7.String() != "v7" || V8.String() != "v8" {
		t.Fatalf("unexpected variant names: %s %s %s", V6, V7, V8)
	}
	if Variant(99).String() != "unknown" {
		t.Fatalf("expected unknown for out-of-range variant")
	}
}
