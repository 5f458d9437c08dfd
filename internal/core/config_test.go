package core

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `data_dir: /var/lib/swarm
share:
  prefixes: [/opt/ws/install, /opt/ros/humble]
launch:
  n_robots: "4"
  arguments:
    world: maze.world
runtime:
  batch_size: 2
remote:
  hosts:
    - name: jetson1
      ip: 10.0.0.5
      user: robot
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Launch.NRobots != "4" || cfg.Launch.Arguments["world"] != "maze.world" {
		t.Fatalf("launch section not decoded: %+v", cfg.Launch)
	}
	if len(cfg.Share.Prefixes) != 2 || cfg.Runtime.BatchSize != 2 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Runtime.Ros2Bin != "ros2" || cfg.Runtime.RunDir != "/var/lib/swarm/runs" {
		t.Fatalf("defaults not applied: %+v", cfg.Runtime)
	}
	h, err := cfg.Host("jetson1")
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	if h.Port != 22 || h.Dir != "swarmlaunch" {
		t.Fatalf("host defaults not applied: %+v", h)
	}
	if _, err := cfg.Host("missing"); err == nil {
		t.Fatalf("expected error for unknown host")
	}
}

func TestLoadConfigTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `data_dir = "/tmp/swarm"

[launch]
n_robots = "2"

[runtime]
ros2_bin = "/opt/ros/humble/bin/ros2"
grace_seconds = 10
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Launch.NRobots != "2" || cfg.Runtime.Ros2Bin != "/opt/ros/humble/bin/ros2" || cfg.Runtime.GraceSeconds != 10 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.DBPath() != "/tmp/swarm/history.db" {
		t.Fatalf("db path %s", cfg.DBPath())
	}
}

func TestLoadConfigMissing(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("AMENT_PREFIX_PATH", "/a"+string(os.PathListSeparator)+"/b")
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("default config should not fail: %v", err)
	}
	if len(cfg.Share.Prefixes) != 2 {
		t.Fatalf("expected AMENT_PREFIX_PATH prefixes, got %v", cfg.Share.Prefixes)
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for explicit missing config")
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ros.env")
	content := "# ros env\nROS_DOMAIN_ID=42\nexport RMW_IMPLEMENTATION=\"rmw_cyclonedds_cpp\"\n\nBROKEN\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	env, err := LoadEnvFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if env["ROS_DOMAIN_ID"] != "42" || env["RMW_IMPLEMENTATION"] != "rmw_cyclonedds_cpp" || len(env) != 2 {
		t.Fatalf("unexpected env %v", env)
	}
	list := EnvList(env)
	if list[0] != "RMW_IMPLEMENTATION=rmw_cyclonedds_cpp" || list[1] != "ROS_DOMAIN_ID=42" {
		t.Fatalf("unexpected env list %v", list)
	}
	if _, err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatalf("expected error for missing env file")
	}
}
