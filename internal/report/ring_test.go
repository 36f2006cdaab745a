package report

import (
	"reflect"
	"testing"
)

func TestRingCollector_TryAddAndPopAll(t *testing.T) {
	c := NewRingCollector(2)

	if !c.TryAdd("a") || !c.TryAdd("b") {
		t.Fatal("TryAdd failed below capacity")
	}
	if c.TryAdd("c") {
		t.Error("TryAdd succeeded at capacity")
	}
	if c.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", c.Dropped())
	}

	select {
	case <-c.Notify():
	default:
		t.Error("Notify channel not signaled")
	}

	got := c.PopAll()
	want := []interface{}{"a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("PopAll() = %v, want %v", got, want)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after drain, want 0", c.Len())
	}
	if c.PopAll() != nil {
		t.Error("PopAll() on empty collector should return nil")
	}
}
