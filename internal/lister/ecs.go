package lister

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/me/ecswait/pkg/model"
)

// ECSListTasksAPI is the subset of the ECS client used by ECSLister.
type ECSListTasksAPI interface {
	ListTasks(ctx context.Context, params *ecs.ListTasksInput, optFns ...func(*ecs.Options)) (*ecs.ListTasksOutput, error)
}

// ECSLister lists tasks through the ECS ListTasks API. It issues exactly
// one request per call; an explicit nextToken in the filter selects the
// page.
type ECSLister struct {
	client ECSListTasksAPI
	logger *slog.Logger
}

// NewECSLister creates an ECSLister around an already configured client.
func NewECSLister(client ECSListTasksAPI, logger *slog.Logger) *ECSLister {
	return &ECSLister{
		client: client,
		logger: logger.With("component", "ecs-lister"),
	}
}

// NewECSListerFromConfig builds the ECS client from an explicit aws.Config.
func NewECSListerFromConfig(cfg aws.Config, logger *slog.Logger, optFns ...func(*ecs.Options)) *ECSLister {
	return NewECSLister(ecs.NewFromConfig(cfg, optFns...), logger)
}

// ListTasks calls ecs:ListTasks with the translated filter and returns the
// task ARNs.
func (l *ECSLister) ListTasks(ctx context.Context, filter model.QueryFilter) ([]string, error) {
	input, err := BuildListTasksInput(filter)
	if err != nil {
		return nil, err
	}

	l.logger.Debug("ecs list tasks", "cluster", filter.Cluster(), "filter", filter.String())

	out, err := l.client.ListTasks(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("ecs ListTasks: %w", err)
	}
	if out == nil {
		return []string{}, nil
	}
	return out.TaskArns, nil
}

// BuildListTasksInput translates a query filter into an ECS request.
// Unknown keys and wrongly typed values are rejected.
func BuildListTasksInput(filter model.QueryFilter) (*ecs.ListTasksInput, error) {
	input := &ecs.ListTasksInput{}
	for _, key := range filter.Keys() {
		v, _ := filter.Get(key)

		if key == model.FilterMaxResults {
			n, err := model.IntValue(v)
			if err != nil {
				return nil, fmt.Errorf("filter %s: %w", key, err)
			}
			if n < 1 || n > 100 {
				return nil, fmt.Errorf("filter %s: must be between 1 and 100, got %d", key, n)
			}
			input.MaxResults = aws.Int32(int32(n))
			continue
		}

		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("filter %s: must be a string, got %T", key, v)
		}
		switch key {
		case model.FilterCluster:
			input.Cluster = aws.String(s)
		case model.FilterContainerInstance:
			input.ContainerInstance = aws.String(s)
		case model.FilterFamily:
			input.Family = aws.String(s)
		case model.FilterNextToken:
			input.NextToken = aws.String(s)
		case model.FilterStartedBy:
			input.StartedBy = aws.String(s)
		case model.FilterServiceName:
			input.ServiceName = aws.String(s)
		case model.FilterDesiredStatus:
			input.DesiredStatus = types.DesiredStatus(s)
		case model.FilterLaunchType:
			input.LaunchType = ecsLaunchType(s)
		default:
			return nil, fmt.Errorf("filter %s: unknown ListTasks parameter", key)
		}
	}
	return input, nil
}

// ecsLaunchType maps the neutral launch types onto ECS values. ECS names
// pass through unchanged.
func ecsLaunchType(s string) types.LaunchType {
	switch model.LaunchType(s) {
	case model.LaunchTypeOnDemand:
		return types.LaunchTypeEc2
	case model.LaunchTypeServerless:
		return types.LaunchTypeFargate
	default:
		return types.LaunchType(s)
	}
}
