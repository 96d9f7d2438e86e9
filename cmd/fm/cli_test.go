package main

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

// writeConfig writes a SQLite-backed config into a temp dir and returns its path.
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := `project:
  id: site
  name: Maple Street
  start: "2026-06-01"
  end: "2026-07-31"
database:
  driver: sqlite
  path: ` + filepath.Join(dir, "foreman.db") + `
resources:
  - id: crew-roof
    name: Roofing crew
`
	path := filepath.Join(dir, "foreman.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("fm %s: %v\n%s", strings.Join(args, " "), err, buf.String())
	}
	return buf.String()
}

var createdID = regexp.MustCompile(`Created task (tsk-[0-9a-f]+)`)

func createTask(t *testing.T, cfg string, args ...string) string {
	t.Helper()
	out := run(t, append([]string{"task", "create", "-c", cfg}, args...)...)
	m := createdID.FindStringSubmatch(out)
	if m == nil {
		t.Fatalf("no task id in output: %s", out)
	}
	return m[1]
}

func TestCLI_ScheduleLifecycle(t *testing.T) {
	cfg := writeConfig(t)

	out := run(t, "db", "init", "-c", cfg)
	if !strings.Contains(out, "initialized successfully") || !strings.Contains(out, "1 resources") {
		t.Fatalf("db init output: %s", out)
	}

	roof := createTask(t, cfg, "--title", "Roofing", "--start", "2026-06-01", "--duration", "5",
		"--trade", "roofing", "--location", "house")
	paint := createTask(t, cfg, "--title", "Exterior paint", "--start", "2026-06-03", "--end", "2026-06-06",
		"--trade", "painting", "--location", "house")

	out = run(t, "task", "list", "-c", cfg)
	for _, want := range []string{roof, paint, "Roofing", "Exterior paint", "2026-06-05"} {
		if !strings.Contains(out, want) {
			t.Errorf("task list missing %q:\n%s", want, out)
		}
	}

	run(t, "task", "dep", "add", paint, "--on", roof, "-c", cfg)
	out = run(t, "task", "dep", "list", roof, "-c", cfg)
	if !strings.Contains(out, "Required by:") || !strings.Contains(out, paint) {
		t.Errorf("dep list output: %s", out)
	}
	run(t, "task", "assign", roof, "--resource", "crew-roof", "-c", cfg)
	out = run(t, "task", "show", roof, "-c", cfg)
	if !strings.Contains(out, "crew-roof x1") {
		t.Errorf("task show missing assignment:\n%s", out)
	}

	out = run(t, "critical", "-c", cfg)
	if !strings.Contains(out, "Critical path: "+roof+" -> "+paint) && !strings.Contains(out, "Critical path: "+paint+" -> "+roof) {
		t.Errorf("critical output: %s", out)
	}
	if !strings.Contains(out, "(9 days)") {
		t.Errorf("expected a 9 day project:\n%s", out)
	}

	out = run(t, "analyze", "-c", cfg, "--perspective", "strict")
	if !strings.Contains(out, "SAF-001") {
		t.Errorf("expected overlapping roofing and painting to be flagged:\n%s", out)
	}

	out = run(t, "move", paint, "--start", "2026-06-10", "-c", cfg)
	if !strings.Contains(out, "2026-06-10 .. 2026-06-13") {
		t.Errorf("move output: %s", out)
	}
	out = run(t, "task", "show", paint, "-c", cfg)
	if !strings.Contains(out, "2026-06-10 to 2026-06-13 (4 days)") {
		t.Errorf("move was not persisted:\n%s", out)
	}
	out = run(t, "analyze", "-c", cfg, "--perspective", "strict")
	if strings.Contains(out, "SAF-001") {
		t.Errorf("conflict still reported after move:\n%s", out)
	}

	out = run(t, "schedule", "-c", cfg, "--scale", "day", "--width", "100")
	if !strings.Contains(out, "Maple Street") || !strings.Contains(out, "#") {
		t.Errorf("schedule output: %s", out)
	}

	xmlPath := filepath.Join(t.TempDir(), "schedule.xml")
	run(t, "export", "-c", cfg, "--out", xmlPath)
	data, err := os.ReadFile(xmlPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "<Project") || !strings.Contains(string(data), "Exterior paint") {
		t.Errorf("export missing project or tasks:\n%s", data)
	}

	out = run(t, "digest", "-c", cfg)
	if !strings.Contains(out, "Schedule digest") {
		t.Errorf("digest output: %s", out)
	}

	run(t, "task", "delete", paint, "-c", cfg)
	out = run(t, "task", "list", "-c", cfg)
	if strings.Contains(out, paint) {
		t.Errorf("deleted task still listed:\n%s", out)
	}
	out = run(t, "task", "list", "--all", "-c", cfg)
	if !strings.Contains(out, "deleted") {
		t.Errorf("list --all should show the deleted task:\n%s", out)
	}
	run(t, "task", "restore", paint, "-c", cfg)
	if out = run(t, "task", "list", "-c", cfg); !strings.Contains(out, paint) {
		t.Errorf("restored task missing:\n%s", out)
	}
}

func TestCLI_DepCycleRejected(t *testing.T) {
	cfg := writeConfig(t)
	run(t, "db", "init", "-c", cfg)

	a := createTask(t, cfg, "--title", "Footings", "--start", "2026-06-01")
	b := createTask(t, cfg, "--title", "Walls", "--start", "2026-06-02")
	run(t, "task", "dep", "add", b, "--on", a, "-c", cfg)

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"task", "dep", "add", a, "--on", b, "-c", cfg})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Errorf("expected cycle error, got %v", err)
	}
}

func TestCLI_UpdateRequiresFields(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"task", "update", "tsk-00000"})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "no fields to update") {
		t.Errorf("expected no fields error, got %v", err)
	}
}
