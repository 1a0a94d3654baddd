package enrich

import (
	"reflect"
	"testing"
)

func TestEnrichJoinsValues(t *testing.T) {
	idx := Build([]string{
		"v1  x  k1",
		"v2  y  k1",
		"v3  z  k2",
	})
	rows := [][]string{
		{"Name", "Status"},
		{"k1", "up"},
		{"k2", "down"},
		{"k9", "up"},
	}

	want := [][]string{
		{"Name", "Status", "Extra Info"},
		{"k1", "up", "v1, v2"},
		{"k2", "down", "v3"},
		{"k9", "up", ""},
	}
	if got := Enrich(rows, idx); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestEnrichHeaderNeverLookedUp(t *testing.T) {
	idx := Build([]string{"v1  x  Name"})
	want := [][]string{{"Name", "Extra Info"}}
	if got := Enrich([][]string{{"Name"}}, idx); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestEnrichEmptyRowUsesEmptyKey(t *testing.T) {
	idx := Build([]string{"v1  x  ;"})
	got := Enrich([][]string{{"h"}, {}, {""}}, idx)
	if !reflect.DeepEqual(got[1], []string{"v1"}) {
		t.Fatalf("unexpected empty row %q", got[1])
	}
	if !reflect.DeepEqual(got[2], []string{"", "v1"}) {
		t.Fatalf("unexpected blank-field row %q", got[2])
	}
}

func TestEnrichDoesNotMutateInput(t *testing.T) {
	rows := [][]string{{"h"}, {"k1"}}
	_ = Enrich(rows, Build(nil))
	if !reflect.DeepEqual(rows, [][]string{{"h"}, {"k1"}}) {
		t.Fatalf("input rows changed: %q", rows)
	}
}

func TestEnrichEmptyInput(t *testing.T) {
	if got := Enrich(nil, Build(nil)); len(got) != 0 {
		t.Fatalf("expected no rows, got %q", got)
	}
}

func TestEnrichPreservesDuplicatesAndOrder(t *testing.T) {
	idx := Build([]string{"v  x  k", "v  x  k"})
	got := Enrich([][]string{{"h"}, {"k"}, {"a"}, {"k"}}, idx)
	if got[1][1] != "v, v" || got[3][1] != "v, v" {
		t.Fatalf("expected duplicate values joined, got %q", got)
	}
	if got[2][0] != "a" {
		t.Fatalf("row order changed: %q", got)
	}
}

func TestEnricherCustomKeyAndSeparator(t *testing.T) {
	idx := Build([]string{"v1  x  k1", "v2  x  k1"})
	e := &Enricher{Index: idx, KeyField: 1, Separator: " | ", Label: "Notes"}
	want := [][]string{
		{"a", "b", "Notes"},
		{"x", "k1", "v1 | v2"},
		{"only", ""},
	}
	if got := e.Rows([][]string{{"a", "b"}, {"x", "k1"}, {"only"}}); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
