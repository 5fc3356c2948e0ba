package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"estoque-backend/internal/config"

	"github.com/spf13/cobra"
)

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	storePath = filepath.Join(dir, "desossa.csv")
	cfg = &config.Config{ReportAttribution: "Controle de Estoque"}
	return dir
}

func TestParseCuts(t *testing.T) {
	cuts, err := parseCuts([]string{"PICANHA=10,5", " ACEM = 3", "PICANHA=0.5"})
	if err != nil {
		t.Fatal(err)
	}
	if got := cuts["PICANHA"].String(); got != "11" {
		t.Errorf("PICANHA = %s, want 11", got)
	}
	if got := cuts["ACEM"].String(); got != "3" {
		t.Errorf("ACEM = %s, want 3", got)
	}

	for _, bad := range []string{"PICANHA", "ACEM=abc"} {
		if _, err := parseCuts([]string{bad}); err == nil {
			t.Errorf("parseCuts(%q) should fail", bad)
		}
	}
}

func TestAppendAndList(t *testing.T) {
	setup(t)

	out, err := run(t, appendCmd(), "--date", "2024-03-01", "--invoice", "NF-1", "--supplier", "FRIGO SUL",
		"--input", "2000", "--cut", "PICANHA=280", "--cut", "ACEM=292")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if !strings.Contains(out, "overall yield: 28.6%") {
		t.Errorf("append output = %q", out)
	}

	out, err = run(t, appendCmd(), "--date", "2024-03-01", "--invoice", "NF-1", "--input", "100")
	if err != nil {
		t.Fatalf("second append: %v", err)
	}
	if !strings.Contains(out, "[warn]") {
		t.Errorf("duplicate not reported: %q", out)
	}

	out, err = run(t, listCmd(), "--supplier", "FRIGO SUL")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "NF-1") || !strings.Contains(out, "1 of 2 record(s)") {
		t.Errorf("list output = %q", out)
	}

	out, err = run(t, listCmd(), "--duplicates")
	if err != nil {
		t.Fatalf("list --duplicates: %v", err)
	}
	if !strings.HasPrefix(out, "NF-1 2024-03-01:") {
		t.Errorf("duplicates output = %q", out)
	}
}

func TestAppend_Invalid(t *testing.T) {
	setup(t)
	if _, err := run(t, appendCmd(), "--invoice", "NF-1", "--input", "0"); err == nil {
		t.Error("zero input weight should be rejected")
	}
	if _, err := os.Stat(storePath); !os.IsNotExist(err) {
		t.Errorf("rejected record created the store: %v", err)
	}
}

func TestList_EmptyStore(t *testing.T) {
	setup(t)
	out, err := run(t, listCmd())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "no records stored yet") {
		t.Errorf("output = %q", out)
	}
}

func TestReport(t *testing.T) {
	dir := setup(t)
	if _, err := run(t, appendCmd(), "--invoice", "NF-9", "--input", "50", "--cut", "OSSO=10"); err != nil {
		t.Fatal(err)
	}

	outDir := filepath.Join(dir, "out")
	out, err := run(t, reportCmd(), "--format", "xlsx", "--out", outDir, "--summary")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !strings.Contains(out, "1 record(s)") {
		t.Errorf("report output = %q", out)
	}
	files, _ := filepath.Glob(filepath.Join(outDir, "relatorio_desossa_*.xlsx"))
	if len(files) != 1 {
		t.Errorf("files = %v, want one xlsx", files)
	}

	if _, err := run(t, reportCmd(), "--supplier", "NINGUEM", "--out", outDir); err == nil {
		t.Error("report with no matching records should fail")
	}
}
