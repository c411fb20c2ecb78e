package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/lineage/pkg/lineage"
)

func date(year int) time.Time { return time.Date(year, time.March, 1, 0, 0, 0, 0, time.UTC) }

func TestTraceTable(t *testing.T) {
	chain := []lineage.Entry{
		{ID: "c1", Name: "Cletus", ParentID: "l1", Start: date(260), Role: "bishop"},
		{ID: "l1", ParentID: "P"},
	}
	out := traceTable(chain)
	for _, want := range []string{"Cletus", "260", "bishop", "l1"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestEraLines(t *testing.T) {
	g := lineage.NewGraph(lineage.Config{Root: lineage.RootSpec{ID: "R", Name: "Root", Year: 33}, AnchorID: "P"})
	g.LoadBackbone([]lineage.Entry{
		{ID: "P", Name: "Peter", ParentID: "R", Start: date(33)},
		{ID: "L", Name: "Linus", ParentID: "P", Start: date(150)},
	})
	lines := eraLines(g)
	if len(lines) == 0 {
		t.Fatal("no era lines")
	}
	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "Linus") || !strings.Contains(joined, "II") {
		t.Errorf("era lines = %q", joined)
	}
}

func TestFormatting(t *testing.T) {
	y := 1054
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"name falls back to id", displayName(lineage.Entry{ID: "x"}), "x"},
		{"undated year", yearString(nil), "—"},
		{"dated year", yearString(&y), "1054"},
		{"era", eraString(&y), "XI"},
		{"unknown era", eraString(nil), "unknown"},
		{"dash", orDash(""), "—"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
