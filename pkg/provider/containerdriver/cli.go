package containerdriver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/cuemby/swarmd/pkg/swarmerr"
)

// runCLI invokes the configured binary with argv, returning combined
// stdout/stderr on failure so callers can surface it in error context.
func (d *Driver) runCLI(ctx context.Context, args ...string) (stdout []byte, stderr []byte, err error) {
	cmd := exec.CommandContext(ctx, d.cliPath, args...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	runErr := cmd.Run()
	stdout, stderr = outBuf.Bytes(), errBuf.Bytes()
	if runErr != nil {
		return stdout, stderr, mapCLIError(runErr, string(stderr))
	}
	return stdout, stderr, nil
}

// mapCLIError classifies a CLI invocation failure into a neutral error
// kind. Without structured exit codes from the CLI itself, we pattern
// match on stderr the way most docker-CLI wrappers in the wild do.
func mapCLIError(err error, stderr string) error {
	switch {
	case bytes.Contains([]byte(stderr), []byte("No such container")):
		return swarmerr.Wrap(swarmerr.NotFoundKind, "container not found", err)
	case bytes.Contains([]byte(stderr), []byte("permission denied")),
		bytes.Contains([]byte(stderr), []byte("unauthorized")):
		return swarmerr.Wrap(swarmerr.AuthKind, "daemon authentication failed", err)
	case bytes.Contains([]byte(stderr), []byte("Cannot connect to")),
		bytes.Contains([]byte(stderr), []byte("daemon")):
		return swarmerr.Wrap(swarmerr.UnavailableKind, "container engine unreachable", err)
	default:
		return swarmerr.Wrap(swarmerr.InternalKind, fmt.Sprintf("cli error: %s", stderr), err)
	}
}

func (d *Driver) inspect(ctx context.Context, id string) (*inspectRecord, error) {
	out, _, err := d.runCLI(ctx, "inspect", id)
	if err != nil {
		return nil, err
	}
	var recs []inspectRecord
	if err := json.Unmarshal(out, &recs); err != nil {
		return nil, swarmerr.Wrap(swarmerr.InternalKind, "failed to parse inspect output", err)
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

// containerPortKey builds the "<port>/tcp" key the inspect schema keys its
// NetworkSettings.Ports map by.
func containerPortKey(port int) string {
	return strconv.Itoa(port) + "/tcp"
}

func parsePort(s string) (int, error) {
	return strconv.Atoi(s)
}
