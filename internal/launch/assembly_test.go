package launch

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/3cpo-dev/swarmlaunch/internal/share"
)

func shareTree(t *testing.T, roster string) (*share.Index, string) {
	t.Helper()
	prefix := t.TempDir()
	for _, pkg := range []string{"driving_swarm_bringup", "state_estimation", "trajectory_follower", "experiment_measurement"} {
		if err := os.MkdirAll(filepath.Join(prefix, "share", pkg), 0755); err != nil {
			t.Fatal(err)
		}
	}
	robots := filepath.Join(prefix, "share", "state_estimation", "params", "robot.yaml")
	if roster != "" {
		if err := os.MkdirAll(filepath.Dir(robots), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(robots, []byte(roster), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return share.NewIndex([]string{prefix}), prefix
}

func TestAssembleIncludeArguments(t *testing.T) {
	idx, prefix := shareTree(t, threeRobots)
	desc, err := Assemble(idx, "")
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	plan, err := Execute(desc, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(plan.Includes) != 1 {
		t.Fatalf("expected one include, got %d", len(plan.Includes))
	}
	inc := plan.Includes[0]
	if inc.Path != filepath.Join(prefix, "share", "driving_swarm_bringup", "launch", "multi_robot.launch.py") {
		t.Fatalf("include path %s", inc.Path)
	}
	want := map[string]string{
		ArgBehaviour:        "false",
		ArgWorld:            "icra2021_no_obstacle.world",
		ArgMap:              filepath.Join(prefix, "share", "driving_swarm_bringup", "maps", "icra2021_map_no_obstacle.yaml"),
		ArgRobotsFile:       filepath.Join(prefix, "share", "state_estimation", "params", "robot.yaml"),
		ArgRosbagTopicsFile: filepath.Join(prefix, "share", "trajectory_follower", "params", "rosbag_topics.yaml"),
		ArgQoSOverrideFile:  filepath.Join(prefix, "share", "experiment_measurement", "params", "qos_override.yaml"),
	}
	if len(inc.Arguments) != len(want) {
		t.Fatalf("expected %d arguments, got %d", len(want), len(inc.Arguments))
	}
	for _, a := range inc.Arguments {
		if want[a.Name] != a.Value {
			t.Errorf("%s: expected %q, got %q", a.Name, want[a.Name], a.Value)
		}
	}
	// default n_robots is 1
	if len(plan.Nodes) != NodesPerRobot {
		t.Fatalf("expected %d nodes, got %d", NodesPerRobot, len(plan.Nodes))
	}
	if plan.Arguments[ArgNRobots] != "1" || plan.ID == "" {
		t.Fatalf("unexpected plan header %+v", plan.Arguments)
	}
}

func TestAssembleOverridesWin(t *testing.T) {
	idx, _ := shareTree(t, threeRobots)
	other := writeRoster(t, "- {name: solo, goals: {x: 0, y: 0, theta: 0}}\n")
	desc, err := Assemble(idx, "2")
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	plan, err := Execute(desc, map[string]string{ArgRobotsFile: other, ArgWorld: "maze.world"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(plan.Nodes) != NodesPerRobot || plan.Nodes[0].Namespace != "solo" {
		t.Fatalf("override roster not used: %+v", plan.Namespaces())
	}
	for _, a := range plan.Includes[0].Arguments {
		if a.Name == ArgWorld && a.Value != "maze.world" {
			t.Fatalf("world override not forwarded: %s", a.Value)
		}
	}

	plan, err = Execute(desc, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := plan.Namespaces(); len(got) != 2 || got[0] != "robot1" || got[1] != "robot2" {
		t.Fatalf("unexpected namespaces %v", got)
	}
}

func TestAssembleDefersRosterRead(t *testing.T) {
	idx, _ := shareTree(t, "")
	desc, err := Assemble(idx, "3")
	if err != nil {
		t.Fatalf("assemble should not read the roster: %v", err)
	}
	plan, err := Execute(desc, nil)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
	if plan != nil {
		t.Fatalf("expected no partial plan")
	}
}

func TestAssembleUnknownPackage(t *testing.T) {
	_, err := Assemble(share.NewIndex([]string{t.TempDir()}), "1")
	if !errors.Is(err, share.ErrPackageNotFound) {
		t.Fatalf("expected ErrPackageNotFound, got %v", err)
	}
}
