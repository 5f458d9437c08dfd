package runner

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/3cpo-dev/swarmlaunch/internal/launch"
	"github.com/3cpo-dev/swarmlaunch/pkg/api"
)

func testPlan() *api.Plan {
	var nodes []api.Node
	for _, r := range []api.RobotSpec{
		{Name: "robot1", Goals: api.Goal{X: 1, Y: 2, Theta: 0}},
		{Name: "robot2", Goals: api.Goal{X: 3, Y: 0.5, Theta: 1.5}},
	} {
		nodes = append(nodes, launch.RobotNodes(r)...)
	}
	return &api.Plan{
		ID: "test",
		Includes: []api.Include{{
			Package:   "driving_swarm_bringup",
			File:      "launch/multi_robot.launch.py",
			Path:      "/ws/share/driving_swarm_bringup/launch/multi_robot.launch.py",
			Arguments: []api.Argument{{Name: "behaviour", Value: "false"}, {Name: "world", Value: "icra2021_no_obstacle.world"}},
		}},
		Nodes: nodes,
	}
}

func TestBuildCommands(t *testing.T) {
	dir := t.TempDir()
	cmds, err := BuildCommands(testPlan(), Options{Ros2Bin: "/opt/ros/bin/ros2", RunDir: dir, Env: []string{"ROS_DOMAIN_ID=7"}})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(cmds) != 1+2*launch.NodesPerRobot {
		t.Fatalf("expected 11 commands, got %d", len(cmds))
	}
	inc := cmds[0]
	want := []string{"/opt/ros/bin/ros2", "launch", "/ws/share/driving_swarm_bringup/launch/multi_robot.launch.py", "behaviour:=false", "world:=icra2021_no_obstacle.world"}
	if !reflect.DeepEqual(inc.Args, want) || inc.Robot != -1 {
		t.Fatalf("include args %v", inc.Args)
	}

	fr := cmds[1]
	if fr.Label != "robot1/fake_range" || fr.Robot != 0 {
		t.Fatalf("unexpected command %+v", fr)
	}
	want = []string{"/opt/ros/bin/ros2", "run", "fake_range", "fake_range", "--ros-args",
		"-r", "__ns:=/robot1", "-r", "/tf:=tf", "-r", "/tf_static:=tf_static", "--params-file", fr.ParamsFile}
	if !reflect.DeepEqual(fr.Args, want) {
		t.Fatalf("node args %v", fr.Args)
	}
	if !strings.HasPrefix(fr.ParamsFile, filepath.Join(dir, "params")) {
		t.Fatalf("params file outside run dir: %s", fr.ParamsFile)
	}
	if cmds[2].Label != "robot1/locator" || strings.Contains(strings.Join(cmds[2].Args, " "), "/tf:=") {
		t.Fatalf("locator must not be remapped: %v", cmds[2].Args)
	}
	if cmds[6].Robot != 1 || cmds[6].Env[0] != "ROS_DOMAIN_ID=7" {
		t.Fatalf("unexpected second robot command %+v", cmds[6])
	}
	for i, c := range cmds {
		if c.Seq != i {
			t.Fatalf("command %d (%s) has seq %d", i, c.Label, c.Seq)
		}
	}
}

func TestBuildCommandsDuplicateNamesKeepDistinctSeq(t *testing.T) {
	plan := testPlan()
	for i := range plan.Nodes {
		plan.Nodes[i].Namespace = "twin"
	}
	cmds, err := BuildCommands(plan, Options{RunDir: t.TempDir()})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	a, b := cmds[1], cmds[1+launch.NodesPerRobot]
	if a.Label != b.Label {
		t.Fatalf("expected repeated labels, got %s and %s", a.Label, b.Label)
	}
	if a.Seq == b.Seq || a.ParamsFile == b.ParamsFile {
		t.Fatalf("duplicate robots share seq %d or params file %s", a.Seq, a.ParamsFile)
	}
}

func TestParamsFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cmds, err := BuildCommands(testPlan(), Options{RunDir: dir})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	read := func(path string) map[string]any {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read params: %v", err)
		}
		var doc map[string]map[string]map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			t.Fatalf("parse params: %v\n%s", err, data)
		}
		return doc["/**"]["ros__parameters"]
	}

	fr := read(cmds[1].ParamsFile)
	if fr["anchor_list"] != launch.AnchorList {
		t.Fatalf("anchor list not preserved: %q", fr["anchor_list"])
	}
	if fr["use_sim_time"] != true || fr["rate"] != 0.1 {
		t.Fatalf("unexpected fake_range params %v", fr)
	}

	goal := read(cmds[5].ParamsFile)
	if goal["x"] != 1.0 || goal["y"] != 2.0 || goal["theta"] != 0.0 {
		t.Fatalf("goal params must stay floats: %#v", goal)
	}
}

func TestBuildCommandsRequiresRunDir(t *testing.T) {
	if _, err := BuildCommands(testPlan(), Options{}); err == nil {
		t.Fatalf("expected error without run dir")
	}
}

func TestBatches(t *testing.T) {
	cmds, err := BuildCommands(testPlan(), Options{RunDir: t.TempDir()})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	batches := Batches(cmds, 1)
	if len(batches) != 3 {
		t.Fatalf("expected include batch plus one per robot, got %d", len(batches))
	}
	if len(batches[0]) != 1 || len(batches[1]) != launch.NodesPerRobot || batches[2][0].Label != "robot2/fake_range" {
		t.Fatalf("unexpected batches %v", batches)
	}
	if got := Batches(cmds, 0); len(got) != 2 || len(got[1]) != 2*launch.NodesPerRobot {
		t.Fatalf("size 0 should start all robots together")
	}
	if got := Batches(cmds, 5); len(got) != 2 {
		t.Fatalf("oversized batch should hold every robot, got %d batches", len(got))
	}
	if got := Batches(nil, 2); len(got) != 0 {
		t.Fatalf("expected no batches for no commands")
	}
}
