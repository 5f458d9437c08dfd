package remote

import (
	"context"
	"fmt"
	"net"
	"path"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Deployment uploads plan artifacts into Dir and optionally runs Command there.
type Deployment struct {
	Dir     string
	Files   []File
	Command string
}

// Addr joins host and port for Client.Addr.
func Addr(host string, port int) string {
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// ExpandCommand substitutes {dir} and {plan} in a host's configured command.
func ExpandCommand(command, dir, planFile string) string {
	r := strings.NewReplacer("{dir}", dir, "{plan}", path.Join(dir, planFile))
	return r.Replace(command)
}

// Deploy connects, uploads every file and runs the command if one is set.
func Deploy(ctx context.Context, c *Client, d Deployment) (string, error) {
	cli, err := Dial(ctx, c)
	if err != nil {
		return "", err
	}
	defer cli.Close()

	if err := PushFiles(cli, d.Dir, d.Files); err != nil {
		return "", fmt.Errorf("upload to %s: %w", c.Addr, err)
	}
	log.Info().Str("host", c.Addr).Str("dir", d.Dir).Int("files", len(d.Files)).Msg("deployment uploaded")
	if d.Command == "" {
		return "", nil
	}
	out, err := RunCommand(ctx, cli, d.Command)
	if err != nil {
		return out, err
	}
	log.Info().Str("host", c.Addr).Str("command", d.Command).Msg("deployment command finished")
	return out, nil
}
