package normalizer

import (
	"strings"
	"testing"

	"logcsv/internal/config"
)

func TestExpandVariables(t *testing.T) {
	fv := mustFlatten(t, `[
		{"name":"A","variables":"{\"chip_resgate\":\"99\",\"idHubNegocio\":7}"},
		{"name":"B","variables":{"chip_resgate":"42","name":"ignored"}},
		{"name":"C","variables":5},
		{"name":"D","variables":"{broken"},
		{"name":"E"}
	]`, "variables")

	ExpandVariables(fv.Frame, "variables")

	if fv.HasColumn("variables") {
		t.Fatal("variables column should be dropped")
	}

	if got := strings.Join(fv.Columns, ","); got != "name,chip_resgate,idHubNegocio" {
		t.Errorf("Columns = %s, want name,chip_resgate,idHubNegocio", got)
	}

	wantChip := []string{"99", "42", "", "", ""}
	for i, want := range wantChip {
		if got := fv.cell(i, "chip_resgate"); got != want {
			t.Errorf("row %d chip_resgate = %q, want %q", i, got, want)
		}
	}

	// A variables key colliding with an existing column never overrides it
	if got := fv.cell(1, "name"); got != "B" {
		t.Errorf("row 1 name = %q, want B", got)
	}
}

func TestExpandVariables_RepeatedKeyKeepsLastValue(t *testing.T) {
	fv := mustFlatten(t, `[{"variables":"{\"k\":1,\"z\":0,\"k\":2}"}]`, "variables")
	ExpandVariables(fv.Frame, "variables")

	if got := strings.Join(fv.Columns, ","); got != "k,z" {
		t.Errorf("Columns = %s, want k,z", got)
	}

	if got := fv.cell(0, "k"); got != "2" {
		t.Errorf("k = %q, want 2", got)
	}
}

func TestExpandVariables_NoColumn(t *testing.T) {
	fv := mustFlatten(t, `[{"name":"A"}]`)
	ExpandVariables(fv.Frame, "variables")

	if got := strings.Join(fv.Columns, ","); got != "name" {
		t.Errorf("Columns = %s, want name", got)
	}
}

func TestCoalesceTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		columns string
	}{
		{
			name: "Alternate fills null",
			input: `[
				{"logged_at":null,"logged_at.$date":"2024-11-26T00:00:00Z"},
				{"logged_at":"2024-11-25T10:00:00","logged_at.$date":"2024-11-30T00:00:00Z"}
			]`,
			want:    []string{"2024-11-26T00:00:00Z", "2024-11-25T10:00:00"},
			columns: "logged_at",
		},
		{
			name: "Nested alternate across rows",
			input: `[
				{"name":"A","logged_at":{"$date":"2024-11-26T00:00:00Z"}},
				{"name":"B","logged_at":"2024-11-27T00:00:00"}
			]`,
			want:    []string{"2024-11-26T00:00:00Z", "2024-11-27T00:00:00"},
			columns: "name,logged_at",
		},
		{
			name:    "Only alternate present",
			input:   `[{"logged_at":{"$date":"2024-11-26T00:00:00Z"},"name":"A"}]`,
			want:    []string{"2024-11-26T00:00:00Z"},
			columns: "logged_at,name",
		},
		{
			name:    "Neither present",
			input:   `[{"name":"A"}]`,
			want:    []string{""},
			columns: "name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fv := mustFlatten(t, tt.input)
			CoalesceTimestamp(fv.Frame, "logged_at", "logged_at.$date")

			if got := strings.Join(fv.Columns, ","); got != tt.columns {
				t.Errorf("Columns = %s, want %s", got, tt.columns)
			}

			for i, want := range tt.want {
				if got := fv.cell(i, "logged_at"); got != want {
					t.Errorf("row %d logged_at = %q, want %q", i, got, want)
				}
			}
		})
	}
}

func TestReconcile_UsesConfiguredNames(t *testing.T) {
	cfg := config.Default().Normalizer
	cfg.VariablesColumn = "vars"
	cfg.TimestampAltColumn = "ts.$date"
	cfg.TimestampColumn = "ts"

	fv := mustFlatten(t, `[{"vars":"{\"a\":1}","ts":{"$date":"2024-11-26"}}]`, "vars")
	Reconcile(fv.Frame, cfg)

	if got := strings.Join(fv.Columns, ","); got != "ts,a" {
		t.Errorf("Columns = %s, want ts,a", got)
	}
}
