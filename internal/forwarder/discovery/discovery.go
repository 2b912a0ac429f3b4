// Package discovery lists and watches running containers via the Docker
// Engine API, turning them into logentry.ContainerMetadata records the
// reader and enricher can use. Grounded on
// internal/monitors/docker_log_discovery.go's ContainerMetadata collection
// and the event-driven start/die tracking sketched in
// pkg/docker/client_manager.go, simplified to the single-client, no-pool
// case: the forwarder talks to exactly one Docker daemon, so the teacher's
// ConnectionPool abstraction (built for many upstream hosts) has nothing to
// pool here and is not carried over.
package discovery

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/sirupsen/logrus"

	"rask-log-stack/pkg/logentry"
)

// Discoverer lists and watches containers on a single Docker daemon.
type Discoverer struct {
	client *client.Client
	logger *logrus.Logger
}

// New wraps an existing Docker API client. Callers own the client's
// lifecycle (client.NewClientWithOpts(...)) so tests can substitute a fake
// transport.
func New(cli *client.Client, logger *logrus.Logger) *Discoverer {
	return &Discoverer{client: cli, logger: logger}
}

// List returns metadata for every currently running container.
func (d *Discoverer) List(ctx context.Context) ([]logentry.ContainerMetadata, error) {
	containers, err := d.client.ContainerList(ctx, types.ContainerListOptions{All: false})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}

	out := make([]logentry.ContainerMetadata, 0, len(containers))
	for _, c := range containers {
		out = append(out, metadataFromSummary(c))
	}
	return out, nil
}

func metadataFromSummary(c types.Container) logentry.ContainerMetadata {
	name := ""
	if len(c.Names) > 0 {
		name = trimLeadingSlash(c.Names[0])
	}
	return logentry.ContainerMetadata{
		ID:     c.ID,
		Name:   name,
		Image:  c.Image,
		Labels: c.Labels,
		Group:  c.Labels["rask.group"],
	}
}

func trimLeadingSlash(s string) string {
	if len(s) > 0 && s[0] == '/' {
		return s[1:]
	}
	return s
}

// Event is a normalized container lifecycle transition.
type Event struct {
	Action   string // "start" | "die"
	Metadata logentry.ContainerMetadata
}

// Watch streams container start/die events until ctx is canceled. Errors
// from the underlying event stream are sent on the returned error channel
// and do not stop the watch; the caller decides whether to give up.
func (d *Discoverer) Watch(ctx context.Context) (<-chan Event, <-chan error) {
	out := make(chan Event)
	errs := make(chan error, 1)

	f := filters.NewArgs()
	f.Add("type", "container")
	f.Add("event", "start")
	f.Add("event", "die")

	msgs, errCh := d.client.Events(ctx, types.EventsOptions{Filters: f})

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				out <- eventFromMessage(msg)
			case err, ok := <-errCh:
				if !ok {
					continue
				}
				select {
				case errs <- err:
				default:
				}
			}
		}
	}()

	return out, errs
}

func eventFromMessage(msg events.Message) Event {
	return Event{
		Action: string(msg.Action),
		Metadata: logentry.ContainerMetadata{
			ID:     msg.Actor.ID,
			Name:   msg.Actor.Attributes["name"],
			Image:  msg.Actor.Attributes["image"],
			Labels: msg.Actor.Attributes,
			Group:  msg.Actor.Attributes["rask.group"],
		},
	}
}
