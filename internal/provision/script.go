package provision

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ScriptProvisioner shells out to an operator-configured command to download
// server artifacts. The command receives the provisioning identity through
// environment variables and must leave a runnable artifact in $INSTANCE_DIR.
type ScriptProvisioner struct {
	// Command is a shell command line, e.g.
	// "/usr/local/bin/fetch-server.sh" or "python3 /opt/tools/fetch.py".
	Command string
}

func NewScriptProvisioner(command string) *ScriptProvisioner {
	return &ScriptProvisioner{Command: command}
}

func (s *ScriptProvisioner) PrepareFiles(ctx context.Context, serverType, version, dir, loaderVersion, installerVersion string) error {
	if strings.TrimSpace(s.Command) == "" {
		return fmt.Errorf("provision command not configured")
	}

	cmd := exec.CommandContext(ctx, "bash", "-c", s.Command)
	cmd.Dir = dir
	cmd.Env = append(cmd.Environ(),
		"SERVER_TYPE="+serverType,
		"SERVER_VERSION="+version,
		"LOADER_VERSION="+loaderVersion,
		"INSTALLER_VERSION="+installerVersion,
		"INSTANCE_DIR="+dir,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("provision command failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
