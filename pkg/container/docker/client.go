// SPDX-FileCopyrightText: Copyright 2026 Aifo AI, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package docker provides the Docker implementation of the container
// runtime, including deploying toolchain sidecars, the per-session network,
// and exec-into-running-container for the proxy.
package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	dockerimage "github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"

	"github.com/aifo-ai/aifo-coder/pkg/container/docker/sdk"
	"github.com/aifo-ai/aifo-coder/pkg/container/runtime"
	"github.com/aifo-ai/aifo-coder/pkg/labels"
	"github.com/aifo-ai/aifo-coder/pkg/logger"
)

// stopTimeoutSeconds is how long Docker waits before killing a container on stop.
const stopTimeoutSeconds = 10

// Client implements the runtime.Runtime interface for container operations.
type Client struct {
	runtimeType runtime.Type
	socketPath  string
	client      *client.Client
}

// NewClient creates a new Docker runtime client, discovering the socket.
func NewClient(ctx context.Context) (*Client, error) {
	dockerClient, socketPath, runtimeType, err := sdk.NewDockerClient(ctx)
	if err != nil {
		return nil, err
	}
	return &Client{
		runtimeType: runtimeType,
		socketPath:  socketPath,
		client:      dockerClient,
	}, nil
}

// RuntimeType returns which runtime flavor the client is connected to.
func (c *Client) RuntimeType() runtime.Type {
	return c.runtimeType
}

// IsRunning checks the health of the container runtime.
func (c *Client) IsRunning(ctx context.Context) error {
	if _, err := c.client.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping container runtime: %w", err)
	}
	return nil
}

// DeployWorkload creates and starts a workload. An existing container with
// the same name is reused when it is already running.
func (c *Client) DeployWorkload(
	ctx context.Context,
	image, name string,
	options *runtime.DeployWorkloadOptions,
) (string, error) {
	if options == nil {
		options = &runtime.DeployWorkloadOptions{}
	}

	existing, err := c.client.ContainerInspect(ctx, name)
	if err == nil {
		if existing.State != nil && existing.State.Running &&
			existing.Config != nil && labels.IsManaged(existing.Config.Labels) {
			return existing.ID, nil
		}
		// Stale container with our name: remove and recreate.
		if err := c.RemoveWorkload(ctx, name); err != nil {
			return "", err
		}
	} else if !client.IsErrNotFound(err) {
		return "", runtime.NewContainerError(err, name, "failed to inspect container")
	}

	config := &container.Config{
		Image:      image,
		Cmd:        options.Command,
		Env:        convertEnvVars(options.EnvVars),
		Labels:     options.Labels,
		User:       options.User,
		WorkingDir: options.WorkingDir,
		Tty:        false,
	}

	hostConfig := &container.HostConfig{
		Mounts: convertMounts(options.Mounts),
	}
	if options.NetworkName != "" {
		hostConfig.NetworkMode = container.NetworkMode(options.NetworkName)
	}

	resp, err := c.client.ContainerCreate(ctx, config, hostConfig, &network.NetworkingConfig{}, nil, name)
	if err != nil {
		return "", runtime.NewContainerError(err, name, fmt.Sprintf("failed to create container: %v", err))
	}

	if err := c.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", runtime.NewContainerError(err, resp.ID, fmt.Sprintf("failed to start container: %v", err))
	}

	return resp.ID, nil
}

// StopWorkload stops a workload gracefully. Missing workloads are not an error.
func (c *Client) StopWorkload(ctx context.Context, name string) error {
	timeout := stopTimeoutSeconds
	err := c.client.ContainerStop(ctx, name, container.StopOptions{Timeout: &timeout})
	if err != nil && !client.IsErrNotFound(err) {
		return runtime.NewContainerError(err, name, "failed to stop workload")
	}
	return nil
}

// RemoveWorkload force-removes a workload. Missing workloads are not an error.
func (c *Client) RemoveWorkload(ctx context.Context, name string) error {
	err := c.client.ContainerRemove(ctx, name, container.RemoveOptions{Force: true})
	if err != nil && !client.IsErrNotFound(err) {
		return runtime.NewContainerError(err, name, "failed to remove workload")
	}
	return nil
}

// IsWorkloadRunning checks if the named workload is currently running.
func (c *Client) IsWorkloadRunning(ctx context.Context, name string) (bool, error) {
	info, err := c.client.ContainerInspect(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return false, nil
		}
		return false, runtime.NewContainerError(err, name, "failed to inspect workload")
	}
	return info.State != nil && info.State.Running, nil
}

// GetWorkloadInfo returns information about the named workload.
func (c *Client) GetWorkloadInfo(ctx context.Context, name string) (runtime.ContainerInfo, error) {
	info, err := c.client.ContainerInspect(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return runtime.ContainerInfo{}, runtime.NewContainerError(runtime.ErrContainerNotFound, name, "")
		}
		return runtime.ContainerInfo{}, runtime.NewContainerError(err, name, "failed to inspect workload")
	}

	created, err := time.Parse(time.RFC3339Nano, info.Created)
	if err != nil {
		created = time.Time{}
	}

	state := ""
	if info.State != nil {
		state = string(info.State.Status)
	}

	return runtime.ContainerInfo{
		ID:      info.ID,
		Name:    strings.TrimPrefix(info.Name, "/"),
		Image:   info.Config.Image,
		State:   state,
		Created: created,
		Labels:  info.Config.Labels,
	}, nil
}

// ListWorkloads lists containers matching every given label filter,
// running or not.
func (c *Client) ListWorkloads(ctx context.Context, labelFilters ...string) ([]runtime.ContainerInfo, error) {
	args := filters.NewArgs()
	for _, f := range labelFilters {
		args.Add("label", f)
	}
	list, err := c.client.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return nil, fmt.Errorf("failed to list workloads: %w", err)
	}

	infos := make([]runtime.ContainerInfo, 0, len(list))
	for _, ctr := range list {
		name := ""
		if len(ctr.Names) > 0 {
			name = strings.TrimPrefix(ctr.Names[0], "/")
		}
		infos = append(infos, runtime.ContainerInfo{
			ID:      ctr.ID,
			Name:    name,
			Image:   ctr.Image,
			State:   ctr.State,
			Created: time.Unix(ctr.Created, 0),
			Labels:  ctr.Labels,
		})
	}
	return infos, nil
}

// ImageExists checks whether an image is available locally.
func (c *Client) ImageExists(ctx context.Context, imageName string) (bool, error) {
	images, err := c.client.ImageList(ctx, dockerimage.ListOptions{
		Filters: filters.NewArgs(filters.Arg("reference", imageName)),
	})
	if err != nil {
		return false, fmt.Errorf("failed to list images: %w", err)
	}
	return len(images) > 0, nil
}

// PullImage pulls an image from a registry, draining the progress stream.
func (c *Client) PullImage(ctx context.Context, imageName string) error {
	logger.Infof("Pulling image: %s", imageName)
	reader, err := c.client.ImagePull(ctx, imageName, dockerimage.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", imageName, err)
	}
	defer reader.Close()
	return parsePullOutput(reader)
}

// parsePullOutput reads the JSON progress stream emitted during a pull and
// surfaces any embedded error.
func parsePullOutput(reader io.Reader) error {
	decoder := json.NewDecoder(reader)
	for {
		var progress struct {
			Status string `json:"status"`
			Error  string `json:"error"`
		}
		if err := decoder.Decode(&progress); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("failed to parse pull output: %w", err)
		}
		if progress.Error != "" {
			return fmt.Errorf("failed to pull image: %s", progress.Error)
		}
		if progress.Status != "" {
			logger.Debugf("Pull: %s", progress.Status)
		}
	}
}

// CreateNetwork creates a bridge network if it does not already exist.
func (c *Client) CreateNetwork(ctx context.Context, name string) error {
	if _, err := c.client.NetworkInspect(ctx, name, network.InspectOptions{}); err == nil {
		return nil
	}
	networkLabels := map[string]string{}
	labels.AddNetworkLabels(networkLabels, name)
	_, err := c.client.NetworkCreate(ctx, name, network.CreateOptions{
		Driver: "bridge",
		Labels: networkLabels,
	})
	if err != nil {
		return fmt.Errorf("failed to create network %s: %w", name, err)
	}
	return nil
}

// RemoveNetwork removes a network. Missing networks are not an error.
func (c *Client) RemoveNetwork(ctx context.Context, name string) error {
	err := c.client.NetworkRemove(ctx, name)
	if err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("failed to remove network %s: %w", name, err)
	}
	return nil
}

// convertEnvVars converts a map of environment variables to KEY=VALUE form.
func convertEnvVars(envVars map[string]string) []string {
	env := make([]string, 0, len(envVars))
	for k, v := range envVars {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}

// convertMounts converts internal mount declarations to Docker mounts.
func convertMounts(mounts []runtime.Mount) []mount.Mount {
	result := make([]mount.Mount, 0, len(mounts))
	for _, m := range mounts {
		result = append(result, mount.Mount{
			Type:     mount.TypeBind,
			Source:   m.Source,
			Target:   m.Target,
			ReadOnly: m.ReadOnly,
		})
	}
	return result
}
