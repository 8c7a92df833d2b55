package internaldefs

import (
	"strings"
	"testing"
)

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 3}))
	want := [8]uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestDefinitionsAreUnique(t *testing.T) {
	seen := map[string]bool{AuditDroppedName: true, SessionsName: true}
	for _, def := range CounterDefs {
		if seen[def.Name] {
			t.Fatalf("duplicate metric name %s", def.Name)
		}
		if !strings.HasPrefix(def.Name, "authflow_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("counter %s does not follow naming", def.Name)
		}
		seen[def.Name] = true
	}
	if n := len(HistogramUpperBounds); n != len(NormalizeBuckets(nil))-1 {
		t.Fatalf("expected 7 finite bounds, got %d", n)
	}
}
