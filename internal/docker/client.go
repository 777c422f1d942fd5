// Package docker возвращает список контейнеров хоста homelab.
package docker

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// Service - краткое описание контейнера для /api/services.
type Service struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Image   string `json:"image"`
	State   string `json:"state"`
	Status  string `json:"status"`
	Created string `json:"created"`
}

// Lister - источник списка контейнеров.
type Lister interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error)
}

// Client оборачивает Docker API.
type Client struct {
	cli    Lister
	closer func() error
	logger *slog.Logger
}

// NewClient подключается к Docker через переменные окружения DOCKER_HOST и т.п.
func NewClient(logger *slog.Logger) (*Client, error) {
	cli, err := client.NewClientWithOpts(
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	c := NewWithLister(cli, logger)
	c.closer = cli.Close
	return c, nil
}

func NewWithLister(cli Lister, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cli: cli, closer: func() error { return nil }, logger: logger}
}

func (c *Client) Close() error {
	return c.closer()
}

// ListServices возвращает все контейнеры, включая остановленные, отсортированные по имени.
func (c *Client) ListServices(ctx context.Context) ([]Service, error) {
	containers, err := c.cli.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	services := make([]Service, 0, len(containers))
	for _, ct := range containers {
		services = append(services, Service{
			ID:      shortID(ct.ID),
			Name:    containerName(ct.Names),
			Image:   ct.Image,
			State:   ct.State,
			Status:  ct.Status,
			Created: time.Unix(ct.Created, 0).UTC().Format(time.RFC3339),
		})
	}
	sort.Slice(services, func(i, j int) bool { return services[i].Name < services[j].Name })
	c.logger.Debug("docker services listed", "count", len(services))
	return services, nil
}

func containerName(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return strings.TrimPrefix(names[0], "/")
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
