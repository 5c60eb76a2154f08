package proxyrun

import "testing"

func TestEnvMapSplitsOnFirstEquals(t *testing.T) {
	m := envMap([]string{"A=1", "B=c=d", "NOEQUALS"})
	if m["A"] != "1" || m["B"] != "c=d" {
		t.Fatalf("envMap = %v", m)
	}
	if _, ok := m["NOEQUALS"]; ok {
		t.Fatalf("envMap should skip entries without '='")
	}
}
