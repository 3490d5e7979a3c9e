package worklist

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"skatescore/internal"
	"skatescore/internal/util"
)

const sample = `
defaults:
  name: GP Cup of China
  season: 2025-2026
  location: Chongqing, CHN
  date: Oct 24-26
tasks:
  - pdf: chn_m_free.pdf
    program: Free
    category: Men
  - pdf: /data/chn_w_short.pdf
    program: sp
    category: ladies
  - pdf: can_m_free.pdf
    name: GP Skate Canada
    location: Saskatoon, CAN
    date: Oct 31-Nov 2
    program: free
    category: m
`

func TestParse(t *testing.T) {
	tasks, err := Parse([]byte(sample), "/work")
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 3 {
		t.Fatalf("len=%d", len(tasks))
	}

	if tasks[0].DocumentPath != filepath.Join("/work", "chn_m_free.pdf") {
		t.Fatalf("path=%q", tasks[0].DocumentPath)
	}
	if tasks[0].CompetitionName != "GP Cup of China" || tasks[0].ProgramType != internal.ProgramFree || tasks[0].Category != internal.CategoryMen {
		t.Fatalf("task0=%+v", tasks[0])
	}
	if tasks[1].DocumentPath != "/data/chn_w_short.pdf" || tasks[1].ProgramType != internal.ProgramShort || tasks[1].Category != internal.CategoryWomen {
		t.Fatalf("task1=%+v", tasks[1])
	}
	if tasks[2].CompetitionName != "GP Skate Canada" || util.Deref(tasks[2].Location) != "Saskatoon, CAN" || tasks[2].Season != "2025-2026" {
		t.Fatalf("task2=%+v", tasks[2])
	}
}

func TestParseRejectsInvalidEntry(t *testing.T) {
	body := `
tasks:
  - pdf: a.pdf
    name: Worlds
    season: 2025-2026
    program: Free
    category: Men
  - pdf: b.pdf
    name: Worlds
    season: 2025-2026
    program: Rhythm
    category: Men
`
	_, err := Parse([]byte(body), "")
	if err == nil || !strings.Contains(err.Error(), "task 2") {
		t.Fatalf("err=%v", err)
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := Parse([]byte("tasks: []\n"), ""); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadResolvesAgainstFileDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batch.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	tasks, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if tasks[2].DocumentPath != filepath.Join(dir, "can_m_free.pdf") {
		t.Fatalf("path=%q", tasks[2].DocumentPath)
	}
}
