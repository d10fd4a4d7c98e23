package docker

import (
	"strconv"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/go-connections/nat"

	"github.com/craftd/craftd/internal/runtime"
	"github.com/craftd/craftd/internal/runtime/metadata"
	"github.com/craftd/craftd/internal/runtime/ports"
)

// Labels that mark and describe managed containers. List and Get only
// consider containers carrying LabelManaged.
const (
	LabelManaged       = "craftd.managed"
	LabelName          = "craftd.name"
	LabelServerType    = "craftd.server_type"
	LabelServerVersion = "craftd.server_version"
	LabelCreatedAt     = "craftd.created_at"
)

const rconDefaultPort = 25575

// instanceLabels builds the label set attached at create time.
func instanceLabels(spec runtime.CreateSpec, createdAt string) map[string]string {
	labels := map[string]string{
		LabelManaged:       "true",
		LabelName:          spec.Name,
		LabelServerType:    spec.Type,
		LabelServerVersion: spec.Version,
		LabelCreatedAt:     createdAt,
	}
	for k, v := range spec.Labels {
		if _, reserved := labels[k]; !reserved {
			labels[k] = v
		}
	}
	return labels
}

// buildEnv assembles the container environment in itzg/minecraft-server
// convention. Overrides are applied last so callers can replace anything.
func buildEnv(spec runtime.CreateSpec) []string {
	env := map[string]string{
		"EULA":    "TRUE",
		"TYPE":    strings.ToUpper(spec.Type),
		"VERSION": spec.Version,
	}
	if spec.Resources.MinRAMMB > 0 {
		env["INIT_MEMORY"] = metadata.FormatRAM(spec.Resources.MinRAMMB)
	}
	if spec.Resources.MaxRAMMB > 0 {
		env["MAX_MEMORY"] = metadata.FormatRAM(spec.Resources.MaxRAMMB)
	}
	if len(spec.Java.ExtraArgs) > 0 {
		env["JVM_OPTS"] = strings.Join(spec.Java.ExtraArgs, " ")
	}

	if spec.LoaderVersion != "" {
		switch strings.ToLower(spec.Type) {
		case "forge":
			env["FORGE_VERSION"] = spec.LoaderVersion
		case "neoforge":
			env["NEOFORGE_VERSION"] = spec.LoaderVersion
		case "fabric":
			env["FABRIC_LOADER_VERSION"] = spec.LoaderVersion
		}
	}

	for k, v := range spec.Env {
		env[k] = v
	}

	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

// envLookup turns the inspect Config.Env slice into a lookup function for
// the command channels.
func envLookup(env []string) func(string) string {
	return func(key string) string {
		prefix := key + "="
		for _, kv := range env {
			if strings.HasPrefix(kv, prefix) {
				return kv[len(prefix):]
			}
		}
		return ""
	}
}

// portBindings maps the game port (and RCON when enabled) to host ports.
func portBindings(hostPort int, rconEnabled bool, rconPort int) (nat.PortSet, nat.PortMap, error) {
	gamePort, err := nat.NewPort("tcp", strconv.Itoa(ports.GamePort))
	if err != nil {
		return nil, nil, err
	}

	exposed := nat.PortSet{gamePort: struct{}{}}
	bindings := nat.PortMap{
		gamePort: []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: strconv.Itoa(hostPort)}},
	}

	if rconEnabled {
		if rconPort <= 0 {
			rconPort = rconDefaultPort
		}
		rp, err := nat.NewPort("tcp", strconv.Itoa(rconDefaultPort))
		if err != nil {
			return nil, nil, err
		}
		exposed[rp] = struct{}{}
		bindings[rp] = []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: strconv.Itoa(rconPort)}}
	}

	return exposed, bindings, nil
}

// mapState converts the engine's state string to an instance status.
func mapState(state string) runtime.Status {
	switch strings.ToLower(state) {
	case "running":
		return runtime.StatusRunning
	case "created":
		return runtime.StatusCreated
	case "paused", "restarting":
		return runtime.StatusStopping
	case "exited":
		return runtime.StatusStopped
	case "dead":
		return runtime.StatusError
	default:
		return runtime.StatusError
	}
}

// summaryToInstance converts a list entry into an instance handle.
func summaryToInstance(c types.Container) runtime.ServerInstance {
	inst := runtime.ServerInstance{
		ID:      c.ID,
		Name:    c.Labels[LabelName],
		Backend: runtime.BackendContainer,
		Status:  mapState(c.State),
		Type:    c.Labels[LabelServerType],
		Version: c.Labels[LabelServerVersion],
	}
	if inst.Name == "" && len(c.Names) > 0 {
		inst.Name = strings.TrimPrefix(c.Names[0], "/")
	}
	for _, p := range c.Ports {
		if int(p.PrivatePort) == ports.GamePort && p.PublicPort != 0 {
			inst.Ports = append(inst.Ports, runtime.PortBinding{
				ContainerPort: int(p.PrivatePort),
				HostPort:      int(p.PublicPort),
				Protocol:      p.Type,
			})
		}
	}
	return inst
}

// inspectToInstance converts inspect output into an instance handle.
func inspectToInstance(info types.ContainerJSON) runtime.ServerInstance {
	inst := runtime.ServerInstance{
		ID:      info.ID,
		Name:    strings.TrimPrefix(info.Name, "/"),
		Backend: runtime.BackendContainer,
	}
	if info.Config != nil {
		if n := info.Config.Labels[LabelName]; n != "" {
			inst.Name = n
		}
		inst.Type = info.Config.Labels[LabelServerType]
		inst.Version = info.Config.Labels[LabelServerVersion]
	}
	if info.State != nil {
		inst.Status = mapState(info.State.Status)
	}
	if info.NetworkSettings != nil {
		for port, binds := range info.NetworkSettings.Ports {
			if port.Int() != ports.GamePort {
				continue
			}
			for _, b := range binds {
				hp, err := strconv.Atoi(b.HostPort)
				if err != nil {
					continue
				}
				inst.Ports = append(inst.Ports, runtime.PortBinding{
					ContainerPort: port.Int(),
					HostPort:      hp,
					Protocol:      port.Proto(),
				})
			}
		}
	}
	return inst
}

// memoryLimitBytes converts the RAM ceiling into the engine's byte limit,
// zero meaning unlimited.
func memoryLimitBytes(limits runtime.ResourceLimits) int64 {
	if limits.MaxRAMMB <= 0 {
		return 0
	}
	return int64(limits.MaxRAMMB) * 1024 * 1024
}

// isPortAllocated reports whether a create or start failure was caused by a
// host port collision.
func isPortAllocated(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "port is already allocated") ||
		strings.Contains(msg, "address already in use")
}

// containerIP picks the address RCON should dial. Published ports are bound
// on the host, so loopback works for every network mode we create.
func containerIP(info types.ContainerJSON) string {
	return "127.0.0.1"
}
