package launch

import (
	"fmt"

	"github.com/3cpo-dev/swarmlaunch/internal/share"
	"github.com/3cpo-dev/swarmlaunch/pkg/api"
)

const (
	BringupPackage    = "driving_swarm_bringup"
	MultiRobotLaunch  = "launch/multi_robot.launch.py"
	DefaultRobotCount = "1"
)

// Assemble builds the swarm description: the shared multi-robot include followed
// by the deferred per-robot composer. Share directories are resolved now; the
// roster is not read until Execute.
func Assemble(idx *share.Index, nRobots string) (*Description, error) {
	if nRobots == "" {
		nRobots = DefaultRobotCount
	}
	resolve := func(pkg string, elems ...string) (string, error) {
		p, err := idx.Path(pkg, elems...)
		if err != nil {
			return "", fmt.Errorf("assemble: %w", err)
		}
		return p, nil
	}

	includePath, err := resolve(BringupPackage, MultiRobotLaunch)
	if err != nil {
		return nil, err
	}
	mapFile, err := resolve(BringupPackage, "maps", "icra2021_map_no_obstacle.yaml")
	if err != nil {
		return nil, err
	}
	robotsFile, err := resolve("state_estimation", "params", "robot.yaml")
	if err != nil {
		return nil, err
	}
	rosbagTopics, err := resolve("trajectory_follower", "params", "rosbag_topics.yaml")
	if err != nil {
		return nil, err
	}
	qosOverride, err := resolve("experiment_measurement", "params", "qos_override.yaml")
	if err != nil {
		return nil, err
	}

	return NewDescription(
		DeclareArgument{Name: ArgNRobots, Default: nRobots, Description: "number of robots to start"},
		IncludeAction{
			Package: BringupPackage,
			File:    MultiRobotLaunch,
			Path:    includePath,
			Arguments: []api.Argument{
				{Name: ArgBehaviour, Value: "false"},
				{Name: ArgWorld, Value: "icra2021_no_obstacle.world"},
				{Name: ArgMap, Value: mapFile},
				{Name: ArgRobotsFile, Value: robotsFile},
				{Name: ArgRosbagTopicsFile, Value: rosbagTopics},
				{Name: ArgQoSOverrideFile, Value: qosOverride},
			},
		},
		OpaqueFunction{Name: "robot_spawning", Function: ComposeRobots},
	), nil
}
