package main

import (
	"encoding/json"
	"strings"
	"testing"

	"qoxide/internal/queue"
)

func TestSizeJSON(t *testing.T) {
	env := setupCLIEnv(t)
	for _, p := range []string{"a", "b", "c"} {
		if _, _, err := env.run(t, "add", "--utf8", p); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if _, _, err := env.run(t, "reserve"); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	out, _, err := env.run(t, "--json", "size")
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	var envelope struct {
		Success bool        `json:"success"`
		Data    queue.Sizes `json:"data"`
	}
	if err := json.Unmarshal([]byte(out), &envelope); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	want := queue.Sizes{Total: 3, Pending: 2, Reserved: 1}
	if !envelope.Success || envelope.Data != want {
		t.Fatalf("got %+v want %+v", envelope.Data, want)
	}
}

func TestRenderSizesTable(t *testing.T) {
	out := renderSizesTable(queue.Sizes{Total: 4, Pending: 1, Reserved: 2, Completed: 1})
	for _, want := range []string{"Total", "Pending", "Reserved", "Completed", "│"} {
		requireContains(t, out, want)
	}
	if strings.Contains(out, "PENDING") {
		t.Fatalf("expected title-cased labels, got %q", out)
	}
}

func TestFormatSizesPlain(t *testing.T) {
	got := formatSizesPlain(queue.Sizes{Total: 5, Pending: 3, Reserved: 1, Completed: 1})
	if got != "total 5\npending 3\nreserved 1\ncompleted 1\n" {
		t.Fatalf("unexpected output %q", got)
	}
}
