package api

import (
	"bufio"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestRoutegroupsRequireSessionGuards(t *testing.T) {
	root := projectRoot(t)
	dir := filepath.Join(root, "api", "routegroups")
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read routegroups dir: %v", err)
	}
	found := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".go") || strings.HasSuffix(entry.Name(), "_test.go") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		lines := readLines(t, path)
		for i, line := range lines {
			if !strings.Contains(line, ".MethodFunc(") {
				continue
			}
			found++
			if strings.Contains(line, "g.SessionPerm(") {
				continue
			}
			t.Fatalf("unguarded routegroup handler in %s:%d -> %s", path, i+1, strings.TrimSpace(line))
		}
	}
	if found == 0 {
		t.Fatalf("no routegroup handlers found in %s", dir)
	}
}

func TestTopLevelRoutesOnlyExposeLoginUnguarded(t *testing.T) {
	root := projectRoot(t)
	path := filepath.Join(root, "api", "routes.go")
	lines := readLines(t, path)
	for i, line := range lines {
		switch {
		case strings.Contains(line, "apiRouter.Post("), strings.Contains(line, "apiRouter.Get("), strings.Contains(line, "apiRouter.MethodFunc("):
			if strings.Contains(line, "\"/login\"") {
				continue
			}
			t.Fatalf("api route registered outside routegroups in %s:%d -> %s", path, i+1, strings.TrimSpace(line))
		case strings.Contains(line, "r.Get(base"):
			if strings.Contains(line, "s.withSession(s.requirePermission(") {
				continue
			}
			t.Fatalf("file route missing session guard in %s:%d -> %s", path, i+1, strings.TrimSpace(line))
		}
	}
}

func projectRoot(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("runtime caller unavailable")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(thisFile), ".."))
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan %s: %v", path, err)
	}
	return lines
}
