package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewRootCmd_RegistersSubcommands(t *testing.T) {
	cmd := newRootCmd()
	for _, n := range []string{"serve", "migrate", "ingest", "create-user", "list-users", "list-records"} {
		found := false
		for _, c := range cmd.Commands() {
			if c.Name() == n {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("expected subcommand %s to be registered", n)
		}
	}
	for _, f := range []string{"config", "dev"} {
		if cmd.PersistentFlags().Lookup(f) == nil {
			t.Fatalf("expected persistent flag --%s", f)
		}
	}
}

func TestIngestAndCreateUser(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DB_PATH", filepath.Join(dir, "portal.db"))
	t.Setenv("UPLOAD_DIR", filepath.Join(dir, "uploads"))
	t.Setenv("JWT_SECRET", "cli-secret")
	t.Setenv("BCRYPT_COST", "4")

	src := filepath.Join(dir, "list.csv")
	if err := os.WriteFile(src, []byte("NAME,CIRTIFICATES\nA,x\nB,y\n"), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"ingest", src})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !strings.Contains(out.String(), "loaded 2 records") {
		t.Fatalf("unexpected output %q", out.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "uploads", "students.csv")); err != nil {
		t.Fatalf("expected staged file: %v", err)
	}

	out.Reset()
	cmd = newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"create-user", "--username", "root", "--password", "secret1", "--role", "admin"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("create-user: %v", err)
	}
	if !strings.Contains(out.String(), "created root (admin)") {
		t.Fatalf("unexpected output %q", out.String())
	}

	out.Reset()
	cmd = newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"list-records"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("list-records: %v", err)
	}
	if !strings.Contains(out.String(), "A") || !strings.Contains(out.String(), "y") {
		t.Fatalf("unexpected output %q", out.String())
	}

	out.Reset()
	cmd = newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"list-users"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("list-users: %v", err)
	}
	if !strings.Contains(out.String(), "root") {
		t.Fatalf("unexpected output %q", out.String())
	}

	cmd = newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"create-user", "--username", "root", "--password", "secret1"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected duplicate username error")
	}
}

func TestMigrate(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DB_PATH", filepath.Join(dir, "portal.db"))
	t.Setenv("LOG_LEVEL", "error")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--dev", "migrate"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func TestLoadConfig_DevFlagSuppliesSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := loadConfig(globalFlags{}); err == nil {
		t.Fatalf("expected error without JWT_SECRET")
	}
	cfg, err := loadConfig(globalFlags{dev: true})
	if err != nil {
		t.Fatalf("dev config: %v", err)
	}
	if cfg.Auth.JWTSecret == "" {
		t.Fatalf("expected development secret")
	}
}
