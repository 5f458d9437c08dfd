package telemetry

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestCollectorDisabled(t *testing.T) {
	c := NewCollector(false)
	c.Counter("plans", 1, nil)
	c.Timer("compose", time.Second, nil)
	if len(c.Snapshot()) != 0 {
		t.Fatalf("disabled collector must drop samples")
	}
	if c.Flush() != 0 {
		t.Fatalf("expected nothing flushed")
	}
}

func TestCollectorFlush(t *testing.T) {
	var buf bytes.Buffer
	c := NewCollector(true).WithLogger(zerolog.New(&buf))
	c.Counter("swarmlaunch_plans_composed", 1, map[string]string{"robots": "2"})
	c.Timer("swarmlaunch_compose_duration", 1500*time.Microsecond, nil)
	c.Gauge("swarmlaunch_nodes", 10, nil)

	snap := c.Snapshot()
	if len(snap) != 3 || snap[1].Value != 1.5 || snap[1].Unit != "ms" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if n := c.Flush(); n != 3 {
		t.Fatalf("expected 3 flushed, got %d", n)
	}
	if len(c.Snapshot()) != 0 {
		t.Fatalf("flush must clear samples")
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 log lines, got %d", len(lines))
	}
	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if first["name"] != "swarmlaunch_plans_composed" || first["message"] != "telemetry_metric" {
		t.Fatalf("unexpected log line %v", first)
	}
}
