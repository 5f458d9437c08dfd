// Package runner turns a launch plan into ros2 processes and supervises them.
package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/3cpo-dev/swarmlaunch/pkg/api"
)

// Command is one process ready to start. Robot is -1 for includes.
// Seq is the command's position in the plan and is unique within a run.
type Command struct {
	Seq        int
	Label      string
	Robot      int
	Args       []string
	Env        []string
	Output     api.OutputMode
	ParamsFile string
}

type Options struct {
	Ros2Bin string
	// RunDir receives parameter files and log output for this run.
	RunDir string
	Env    []string
}

// BuildCommands renders every include and node of the plan as a ros2 command,
// writing one parameter file per node under opts.RunDir.
func BuildCommands(plan *api.Plan, opts Options) ([]Command, error) {
	bin := opts.Ros2Bin
	if bin == "" {
		bin = "ros2"
	}
	if opts.RunDir == "" {
		return nil, fmt.Errorf("build commands: run dir required")
	}
	paramsDir := filepath.Join(opts.RunDir, "params")
	if err := os.MkdirAll(paramsDir, 0755); err != nil {
		return nil, fmt.Errorf("mkdir params dir: %w", err)
	}

	var cmds []Command
	for _, inc := range plan.Includes {
		args := []string{bin, "launch", inc.Path}
		for _, a := range inc.Arguments {
			args = append(args, a.Name+":="+a.Value)
		}
		cmds = append(cmds, Command{
			Seq:    len(cmds),
			Label:  inc.Package + "/" + filepath.Base(inc.File),
			Robot:  -1,
			Args:   args,
			Env:    opts.Env,
			Output: api.OutputScreen,
		})
	}

	robots := map[string]int{}
	for i, ns := range plan.Namespaces() {
		robots[ns] = i
	}
	for i, n := range plan.Nodes {
		label := n.Executable
		if n.Namespace != "" {
			label = strings.TrimPrefix(n.Namespace, "/") + "/" + n.Executable
		}
		paramsFile := filepath.Join(paramsDir, fmt.Sprintf("%03d_%s.yaml", i, strings.ReplaceAll(label, "/", "_")))
		if err := WriteParams(paramsFile, n.Parameters); err != nil {
			return nil, err
		}
		cmds = append(cmds, Command{
			Seq:        len(cmds),
			Label:      label,
			Robot:      robots[n.Namespace],
			Args:       NodeArgs(bin, n, paramsFile),
			Env:        opts.Env,
			Output:     n.Output,
			ParamsFile: paramsFile,
		})
	}
	return cmds, nil
}

// NodeArgs is the ros2 run command line for a node.
func NodeArgs(bin string, n api.Node, paramsFile string) []string {
	args := []string{bin, "run", n.Package, n.Executable, "--ros-args"}
	if n.Namespace != "" {
		args = append(args, "-r", "__ns:=/"+strings.TrimPrefix(n.Namespace, "/"))
	}
	for _, r := range n.Remappings {
		args = append(args, "-r", r.From+":="+r.To)
	}
	if paramsFile != "" {
		args = append(args, "--params-file", paramsFile)
	}
	return args
}
