package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"offsettweak/internal/config"
	"offsettweak/internal/locator"
	"offsettweak/internal/testsupport"
)

type cliTestEnv struct {
	baseDir    string
	root       string
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	home := filepath.Join(base, "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)

	cfg := testsupport.NewConfig(t, opts...)
	cfg.Logging.Level = "error"
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}

	env := &cliTestEnv{
		baseDir:    base,
		root:       filepath.Join(base, "Songs"),
		cfg:        cfg,
		configPath: filepath.Join(base, "config.toml"),
	}
	if err := os.WriteFile(env.configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func runCLI(t *testing.T, env *cliTestEnv, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func writePack(t *testing.T, env *cliTestEnv) (string, string) {
	t.Helper()
	a := testsupport.WriteChart(t, env.root, "Pack", "Alpha", "alpha.ssc", "#TITLE:Alpha;\n#OFFSET:-0.050;\n#BPMS:0=120;\n")
	b := testsupport.WriteChart(t, env.root, "Pack", "Beta", "beta.sm", "#TITLE:Beta;\r\n#OFFSET:0.100;\r\n")
	return a, b
}

func TestToITGAppliesAfterApproval(t *testing.T) {
	env := setupCLITestEnv(t)
	a, b := writePack(t, env)

	out, err := runCLI(t, env, "maybe\ny\n", "--toitg", env.root)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	requireContains(t, out, `Apply changes to "Pack"?`)
	requireContains(t, out, "applied")

	if got := testsupport.ReadFile(t, a); got != "#TITLE:Alpha;\n#OFFSET:-0.041;\n#BPMS:0=120;\n" {
		t.Fatalf("unexpected alpha content: %q", got)
	}
	if got := testsupport.ReadFile(t, b); got != "#TITLE:Beta;\r\n#OFFSET:0.109;\r\n" {
		t.Fatalf("unexpected beta content: %q", got)
	}

	ledgerText := testsupport.ReadFile(t, filepath.Join(env.root, "Pack", "offset_tweak.csv"))
	requireContains(t, ledgerText, "Pack,Alpha,alpha.ssc,-0.041")
	requireContains(t, ledgerText, "Pack,Beta,beta.sm,0.109")
}

func TestDeclineLeavesTreeUntouched(t *testing.T) {
	env := setupCLITestEnv(t)
	writePack(t, env)
	before := testsupport.Snapshot(t, env.root)

	out, err := runCLI(t, env, "N\n", "--tonull", env.root)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	requireContains(t, out, "declined")

	after := testsupport.Snapshot(t, env.root)
	if len(after) != len(before) {
		t.Fatalf("expected %d files after decline, got %d", len(before), len(after))
	}
	for path, content := range before {
		if after[path] != content {
			t.Fatalf("file %s changed after decline", path)
		}
	}
}

func TestResetDropsLedger(t *testing.T) {
	env := setupCLITestEnv(t)
	a, _ := writePack(t, env)

	if out, err := runCLI(t, env, "", "--toitg", "--yes", env.root); err != nil {
		t.Fatalf("toitg: %v\n%s", err, out)
	}
	ledgerPath := filepath.Join(env.root, "Pack", "offset_tweak.csv")
	if _, err := os.Stat(ledgerPath); err != nil {
		t.Fatalf("expected ledger after toitg: %v", err)
	}

	out, err := runCLI(t, env, "", "--reset", env.root)
	if err != nil {
		t.Fatalf("reset: %v\n%s", err, out)
	}
	requireContains(t, out, "reset")
	if _, err := os.Stat(ledgerPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ledger removed, stat err = %v", err)
	}
	requireContains(t, testsupport.ReadFile(t, a), "#OFFSET:-0.041;")
}

func TestDryRunWritesNothing(t *testing.T) {
	env := setupCLITestEnv(t)
	writePack(t, env)
	before := testsupport.Snapshot(t, env.root)

	out, err := runCLI(t, env, "", "--custom", "0.25", "--dry-run", env.root)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	requireContains(t, out, "dry-run")
	requireContains(t, out, "0.200")

	after := testsupport.Snapshot(t, env.root)
	for path, content := range before {
		if after[path] != content {
			t.Fatalf("file %s changed during dry run", path)
		}
	}
	if len(after) != len(before) {
		t.Fatalf("dry run created files: %d -> %d", len(before), len(after))
	}
}

func TestArgumentErrors(t *testing.T) {
	env := setupCLITestEnv(t)
	writePack(t, env)

	cases := []struct {
		name string
		args []string
	}{
		{"no root", []string{"--toitg"}},
		{"two roots", []string{env.root, env.root}},
		{"conflicting deltas", []string{"--toitg", "--tonull", env.root}},
		{"yes with dry run", []string{"--yes", "--dry-run", env.root}},
		{"unknown flag", []string{"--sideways", env.root}},
		{"non-finite custom", []string{"--custom", "NaN", env.root}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := runCLI(t, env, "", tc.args...); err == nil {
				t.Fatalf("expected error for %v", tc.args)
			}
		})
	}
}

func TestInvalidRootFails(t *testing.T) {
	env := setupCLITestEnv(t)
	empty := filepath.Join(env.baseDir, "empty")
	if err := os.MkdirAll(empty, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	_, err := runCLI(t, env, "", "--toitg", empty)
	if !errors.Is(err, locator.ErrInvalidRoot) {
		t.Fatalf("expected ErrInvalidRoot, got %v", err)
	}
}

func TestHistoryListsCommittedPacks(t *testing.T) {
	env := setupCLITestEnv(t)
	writePack(t, env)

	out, err := runCLI(t, env, "", "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No committed packs recorded")

	if out, err := runCLI(t, env, "", "--toitg", "--yes", env.root); err != nil {
		t.Fatalf("toitg: %v\n%s", err, out)
	}

	out, err = runCLI(t, env, "", "history", "--changes")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "Pack")
	requireContains(t, out, "saved")
	requireContains(t, out, "#OFFSET:-0.041;")
	if _, err := os.Stat(env.cfg.History.Path); err != nil {
		t.Fatalf("expected history database: %v", err)
	}
}

func TestHistoryDisabled(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithoutHistory())
	writePack(t, env)

	if out, err := runCLI(t, env, "", "--toitg", "--yes", env.root); err != nil {
		t.Fatalf("toitg: %v\n%s", err, out)
	}
	if _, err := os.Stat(env.cfg.History.Path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected no history database, stat err = %v", err)
	}

	out, err := runCLI(t, env, "", "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "History is disabled")
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, env, "", "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.cfg.Paths.StateDir)

	target := filepath.Join(t.TempDir(), "offsettweak.toml")
	out, err = runCLI(t, env, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, err := runCLI(t, env, "", "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
}
