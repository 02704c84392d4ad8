package project_test

import (
	"strings"
	"testing"

	"sable/internal/project"
)

func TestParse_FillsDefaults(t *testing.T) {
	cfg, err := project.Parse([]byte(`
[package]
name = "bank"
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Package.Name != "bank" {
		t.Fatalf("name = %q", cfg.Package.Name)
	}
	if cfg.Build.WildcardPolicy != project.WildcardCoarsen {
		t.Fatalf("wildcard policy = %q", cfg.Build.WildcardPolicy)
	}
	if !cfg.Manifest.Emit {
		t.Fatal("manifest emission must default on")
	}
	if cfg.Build.OutDir != "." {
		t.Fatalf("out_dir = %q", cfg.Build.OutDir)
	}
}

func TestParse_FullConfig(t *testing.T) {
	cfg, err := project.Parse([]byte(`
[package]
name = "bank"

[build]
wildcard_policy = "reject"
max_locals = 128
memory_pages = 2
out_dir = "build"

[manifest]
emit = false
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Build.WildcardPolicy != project.WildcardReject {
		t.Fatalf("wildcard policy = %q", cfg.Build.WildcardPolicy)
	}
	if cfg.Build.MaxLocals != 128 || cfg.Build.MemoryPages != 2 {
		t.Fatalf("limits = %+v", cfg.Build)
	}
	if cfg.Build.OutDir != "build" || cfg.Manifest.Emit {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestParse_RejectsUnknownPolicy(t *testing.T) {
	_, err := project.Parse([]byte(`
[build]
wildcard_policy = "panic"
`))
	if err == nil || !strings.Contains(err.Error(), "wildcard_policy") {
		t.Fatalf("err = %v", err)
	}
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	_, err := project.Parse([]byte(`
[build]
wobble = true
`))
	if err == nil || !strings.Contains(err.Error(), "wobble") {
		t.Fatalf("err = %v", err)
	}
}
