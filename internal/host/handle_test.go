// SPDX-License-Identifier: MIT
package host

import "testing"

func TestHandleLayout(t *testing.T) {
	tests := []struct {
		slot int
		gen  uint32
		want Handle
	}{
		{0, 0, 1},
		{4, 0, 5},
		{0, 1, 1<<32 | 1},
		{41, 7, 7<<32 | 42},
	}
	for _, tt := range tests {
		h := makeHandle(tt.slot, tt.gen)
		if h != tt.want {
			t.Errorf("makeHandle(%d, %d) = %#x, want %#x", tt.slot, tt.gen, uint64(h), uint64(tt.want))
		}
		if h.slot() != tt.slot || h.gen() != tt.gen {
			t.Errorf("%#x decodes to slot %d gen %d", uint64(h), h.slot(), h.gen())
		}
	}
	if NullHandle.slot() != -1 {
		t.Errorf("NullHandle.slot() = %d, want -1", NullHandle.slot())
	}
}

func TestTableReuseBumpsGeneration(t *testing.T) {
	var tb table[string]

	a := tb.insert("a")
	b := tb.insert("b")
	if v, ok := tb.get(a); !ok || v != "a" {
		t.Fatalf("get(a) = (%q, %v)", v, ok)
	}

	if v, ok := tb.remove(a); !ok || v != "a" {
		t.Fatalf("remove(a) = (%q, %v)", v, ok)
	}
	if _, ok := tb.remove(a); ok {
		t.Error("double remove succeeded")
	}

	c := tb.insert("c")
	if c.slot() != a.slot() || c.gen() != a.gen()+1 {
		t.Errorf("reuse: a=%s c=%s", a, c)
	}
	if _, ok := tb.get(a); ok {
		t.Error("stale handle resolved after reuse")
	}
	if tb.len() != 2 {
		t.Errorf("len() = %d, want 2", tb.len())
	}

	got := tb.drain()
	if len(got) != 2 {
		t.Errorf("drain() returned %d values, want 2", len(got))
	}
	if _, ok := tb.get(b); ok || tb.len() != 0 {
		t.Error("drain left live entries")
	}
}

func BenchmarkTableGet(b *testing.B) {
	var tb table[int]
	h := tb.insert(1)
	b.ReportAllocs()
	for b.Loop() {
		_, _ = tb.get(h)
	}
}
