package config

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

func TestReportLifecycle(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "report.zip")
	conf := &ReporterConfig{Destination: dest}

	rpt, err := conf.Prepare()
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if rpt.Name() == "" {
		t.Error("report has no name")
	}

	rpt.StoreData("config/config.yaml", []byte("version: 1\n"))

	extra := filepath.Join(t.TempDir(), "extra.log")
	if err := os.WriteFile(extra, []byte("log line\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	rpt.Store("extra.log", extra)

	if err := rpt.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	zr, err := zip.OpenReader(dest)
	if err != nil {
		t.Fatalf("report is not a readable zip: %v", err)
	}
	defer zr.Close()

	want := map[string]bool{"MANIFEST": false, "config/config.yaml": false, "extra.log": false}
	for _, f := range zr.File {
		if _, ok := want[f.Name]; ok {
			want[f.Name] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("archive missing %s", name)
		}
	}
}

func TestReportNilSafe(t *testing.T) {
	var rpt *Report
	rpt.Store("a", "b")
	rpt.StoreData("c", []byte("d"))
	if rpt.Name() != "" {
		t.Error("nil report has a name")
	}
	if err := rpt.Close(); err != nil {
		t.Errorf("nil report Close: %v", err)
	}
}
