package cli

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/lineage/pkg/lineage"
)

func typeRunes(m SearchModel, s string) SearchModel {
	for _, r := range s {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(SearchModel)
	}
	return m
}

func press(m SearchModel, k tea.KeyType) (SearchModel, tea.Cmd) {
	next, cmd := m.Update(tea.KeyMsg{Type: k})
	return next.(SearchModel), cmd
}

func TestSearchModelQueries(t *testing.T) {
	var queries []string
	m := NewSearchModel("", func(q string) { queries = append(queries, q) })

	m = typeRunes(m, "Leo")
	if m.Query != "Leo" {
		t.Fatalf("Query = %q", m.Query)
	}
	m, _ = press(m, tea.KeyBackspace)
	if m.Query != "Le" {
		t.Errorf("after backspace Query = %q", m.Query)
	}
	want := []string{"L", "Le", "Leo", "Le"}
	if strings.Join(queries, ",") != strings.Join(want, ",") {
		t.Errorf("queries = %v, want %v", queries, want)
	}
}

func TestSearchModelResults(t *testing.T) {
	m := typeRunes(NewSearchModel("", func(string) {}), "Leo")
	results := []lineage.Entry{{ID: "a", Name: "Leo I"}, {ID: "b", Name: "Leo II"}}

	// Results for an older term are dropped.
	next, _ := m.Update(resultsMsg{term: "Le", results: results})
	m = next.(SearchModel)
	if len(m.Results) != 0 {
		t.Fatal("stale results applied")
	}

	next, _ = m.Update(resultsMsg{term: "Leo", results: results})
	m = next.(SearchModel)
	if len(m.Results) != 2 || !strings.Contains(m.View(), "Leo II") {
		t.Fatalf("results not shown:\n%s", m.View())
	}

	m, _ = press(m, tea.KeyDown)
	m, _ = press(m, tea.KeyDown)
	if m.Cursor != 1 {
		t.Errorf("Cursor = %d, want clamped 1", m.Cursor)
	}
	m, cmd := press(m, tea.KeyEnter)
	if m.Selected == nil || m.Selected.ID != "b" {
		t.Errorf("Selected = %+v", m.Selected)
	}
	if cmd == nil {
		t.Error("enter should quit")
	}
}

func TestSearchModelEmpty(t *testing.T) {
	m := NewSearchModel("", func(string) {})
	m, cmd := press(m, tea.KeyEnter)
	if m.Selected != nil || cmd != nil {
		t.Error("enter without results should do nothing")
	}
	m = typeRunes(m, "x")
	m, _ = press(m, tea.KeyBackspace)
	if m.searching || len(m.Results) != 0 {
		t.Error("clearing the input should reset the list")
	}
	if _, cmd := press(m, tea.KeyEsc); cmd == nil {
		t.Error("esc should quit")
	}
}
