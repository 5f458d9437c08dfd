package launch

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/3cpo-dev/swarmlaunch/pkg/api"
)

const (
	ArgNRobots          = "n_robots"
	ArgRobotsFile       = "robots_file"
	ArgBehaviour        = "behaviour"
	ArgWorld            = "world"
	ArgMap              = "map"
	ArgRosbagTopicsFile = "rosbag_topics_file"
	ArgQoSOverrideFile  = "qos_override_file"
)

// NodesPerRobot is the number of processes started in each robot namespace.
const NodesPerRobot = 5

// SensorRate is the fake_range publish rate parameter.
const SensorRate = 0.1

var tfRemappings = []api.Remapping{
	{From: "/tf", To: "tf"},
	{From: "/tf_static", To: "tf_static"},
}

// ParseRobotCount parses the n_robots argument.
func ParseRobotCount(value string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q: %v", ErrInvalidArgument, ArgNRobots, value, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %s=%d is negative", ErrInvalidArgument, ArgNRobots, n)
	}
	return n, nil
}

// ComposeRobots reads the roster named by robots_file and emits the per-robot
// nodes for the first n_robots entries.
func ComposeRobots(lc *Context) ([]Action, error) {
	count, err := lc.Configuration(ArgNRobots)
	if err != nil {
		return nil, err
	}
	n, err := ParseRobotCount(count)
	if err != nil {
		return nil, err
	}
	path, err := lc.Configuration(ArgRobotsFile)
	if err != nil {
		return nil, err
	}
	robots, err := LoadRoster(path, n)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("roster", path).Int("requested", n).Int("robots", len(robots)).Msg("roster loaded")

	actions := make([]Action, 0, len(robots)*NodesPerRobot)
	for _, r := range robots {
		for _, node := range RobotNodes(r) {
			actions = append(actions, NodeAction{Node: node})
		}
	}
	return actions, nil
}

// RobotNodes returns the five processes for one robot, in start order.
func RobotNodes(r api.RobotSpec) []api.Node {
	simTime := api.Parameter{Name: "use_sim_time", Value: true}
	node := func(pkg, exe string, remap bool, params ...api.Parameter) api.Node {
		n := api.Node{
			Package:    pkg,
			Executable: exe,
			Namespace:  r.Name,
			Parameters: append([]api.Parameter{simTime}, params...),
			Output:     api.OutputScreen,
		}
		if remap {
			n.Remappings = append([]api.Remapping(nil), tfRemappings...)
		}
		return n
	}
	return []api.Node{
		node("fake_range", "fake_range", true,
			api.Parameter{Name: "rate", Value: SensorRate},
			api.Parameter{Name: "anchor_list", Value: AnchorList},
		),
		node("state_estimation", "locator", false),
		node("state_estimation", "controller", false),
		node("state_estimation", "scoring", true),
		node("goal_provider", "simple_goal", true,
			api.Parameter{Name: "x", Value: r.Goals.X},
			api.Parameter{Name: "y", Value: r.Goals.Y},
			api.Parameter{Name: "theta", Value: r.Goals.Theta},
		),
	}
}
