package mealgen

import (
	"reflect"
	"testing"
	"time"
)

func TestLogIsDeterministic(t *testing.T) {
	end := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

	a := New(42).Log(end, DefaultDays)
	b := New(42).Log(end, DefaultDays)
	if !reflect.DeepEqual(a, b) {
		t.Error("same seed produced different logs")
	}

	c := New(43).Log(end, DefaultDays)
	if reflect.DeepEqual(a, c) {
		t.Error("different seeds produced identical logs")
	}
}

func TestLogShape(t *testing.T) {
	end := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	log := New(1).Log(end, DefaultDays)

	if len(log) != DefaultDays {
		t.Fatalf("got %d days, want %d", len(log), DefaultDays)
	}

	entries := log.Entries()
	if entries[0].Date != "2024-02-17" || entries[len(entries)-1].Date != "2024-03-02" {
		t.Errorf("range = %s..%s", entries[0].Date, entries[len(entries)-1].Date)
	}

	for _, e := range entries {
		if len(e.Items) != len(DefaultSlots) {
			t.Fatalf("%s has %d items", e.Date, len(e.Items))
		}
		for i, item := range e.Items {
			if !contains(DefaultSlots[i].Candidates, item) {
				t.Errorf("%s: %q not a %s candidate", e.Date, item, DefaultSlots[i].Name)
			}
		}
	}
}

func TestCustomSlots(t *testing.T) {
	g := NewWithSlots(7, []Slot{{Name: "only", Candidates: []string{"ragi"}}, {Name: "empty"}})
	if got := g.Day(); !reflect.DeepEqual(got, []string{"ragi"}) {
		t.Errorf("got %v", got)
	}
	if got := g.Log(time.Now(), 0); len(got) != 0 {
		t.Errorf("zero days gave %v", got)
	}
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
