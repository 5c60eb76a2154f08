package logging

import "testing"

func TestDiscardReturnsUsableEntry(t *testing.T) {
	entry := Discard()
	if entry == nil {
		t.Fatal("Discard returned nil")
	}
	entry.Info("should not panic")
}

func TestNewSetsProxyField(t *testing.T) {
	entry := New("tgrustc")
	if entry.Data["proxy"] != "tgrustc" {
		t.Fatalf("proxy field = %v", entry.Data["proxy"])
	}
}
