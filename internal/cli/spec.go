package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/me/ecswait/internal/config"
	"github.com/me/ecswait/internal/lister"
	"github.com/me/ecswait/internal/template"
	"github.com/me/ecswait/pkg/model"
	"github.com/spf13/cobra"
)

// specFlags collects the flags that describe a wait. Flags override the
// values of --file.
type specFlags struct {
	file     string
	cluster  string
	filters  []string
	params   []string
	labels   []string
	interval time.Duration
	timeout  time.Duration
	softFail bool
	strict   bool
}

func (f *specFlags) register(cmd *cobra.Command, policy bool) {
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "Wait spec file (YAML or JSON)")
	cmd.Flags().StringVarP(&f.cluster, "cluster", "c", "", "Cluster (group) to watch; may be templated")
	cmd.Flags().StringArrayVar(&f.filters, "filter", nil, "Extra ListTasks filter as key=value (repeatable)")
	cmd.Flags().StringArrayVar(&f.params, "param", nil, "Template parameter as key=value (repeatable)")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "Reject unknown filter keys and invalid values")
	if policy {
		cmd.Flags().DurationVar(&f.interval, "interval", 0, "Time between checks (default 60s)")
		cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Overall deadline (default 168h; negative disables it)")
		cmd.Flags().BoolVar(&f.softFail, "soft-fail", false, "Report a timeout as skipped instead of failed")
	}
}

// spec loads --file (if any) and applies the flag overrides.
func (f *specFlags) spec(cmd *cobra.Command) (*config.WaitSpec, error) {
	spec := &config.WaitSpec{Filter: map[string]any{}}
	if f.file != "" {
		loaded, err := config.LoadWaitSpec(f.file)
		if err != nil {
			return nil, err
		}
		spec = loaded
	}

	if f.cluster != "" {
		spec.Cluster = f.cluster
	}
	for _, kv := range f.filters {
		k, v, err := splitKV(kv)
		if err != nil {
			return nil, fmt.Errorf("--filter: %w", err)
		}
		spec.Filter[k] = v
		if k == model.FilterMaxResults {
			n, err := model.IntValue(v)
			if err != nil {
				return nil, fmt.Errorf("--filter %s: %w", k, err)
			}
			spec.Filter[k] = n
		}
	}
	if len(f.params) > 0 && spec.Params == nil {
		spec.Params = map[string]any{}
	}
	for _, kv := range f.params {
		k, v, err := splitKV(kv)
		if err != nil {
			return nil, fmt.Errorf("--param: %w", err)
		}
		spec.Params[k] = v
	}
	if len(f.labels) > 0 && spec.Labels == nil {
		spec.Labels = map[string]string{}
	}
	for _, kv := range f.labels {
		k, v, err := splitKV(kv)
		if err != nil {
			return nil, fmt.Errorf("--label: %w", err)
		}
		spec.Labels[k] = v
	}

	if cmd.Flags().Changed("interval") {
		spec.Interval = config.Duration(f.interval)
	}
	if cmd.Flags().Changed("timeout") {
		spec.Timeout = config.Duration(f.timeout)
	}
	if cmd.Flags().Changed("soft-fail") {
		spec.SoftFail = f.softFail
	}
	spec.ApplyDefaults()
	return spec, nil
}

// localFilter renders the wait spec's templated fields for a local run and
// builds its filter.
func localFilter(ctx context.Context, spec *config.WaitSpec, runID string, strict bool) (model.QueryFilter, error) {
	renderer := template.NewRenderer(template.Context{
		WaitID:    runID,
		CreatedAt: time.Now().UTC(),
		Params:    spec.Params,
		Env:       environ(),
	}).WithContext(ctx)
	filter, err := renderer.Filter(spec.Cluster, spec.Filter)
	if err != nil {
		return model.QueryFilter{}, err
	}
	if strict {
		if err := filter.Validate(); err != nil {
			return model.QueryFilter{}, err
		}
	}
	return filter, nil
}

func splitKV(s string) (string, string, error) {
	k, v, ok := strings.Cut(s, "=")
	k = strings.TrimSpace(k)
	if !ok || k == "" {
		return "", "", fmt.Errorf("expected key=value, got %q", s)
	}
	return k, v, nil
}

// environ returns the process environment as a map.
func environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

// templateEnv returns the named process environment variables. Names that
// are unset are left out, so templates see them as undefined.
func templateEnv(names []string) map[string]string {
	env := make(map[string]string, len(names))
	for _, name := range names {
		if v, ok := os.LookupEnv(name); ok {
			env[name] = v
		}
	}
	return env
}

func registerAWSFlags(cmd *cobra.Command, c *config.AWSConfig) {
	cmd.Flags().StringVar(&c.Region, "region", os.Getenv("AWS_REGION"), "AWS region (or AWS_REGION env)")
	cmd.Flags().StringVar(&c.Profile, "profile", os.Getenv("AWS_PROFILE"), "AWS shared config profile (or AWS_PROFILE env)")
	cmd.Flags().StringVar(&c.Endpoint, "endpoint", "", "ECS endpoint override")
	cmd.Flags().IntVar(&c.MaxAttempts, "max-attempts", 0, "SDK attempts per request (0 keeps the SDK default)")
	cmd.Flags().BoolVar(&c.Retry, "retry-throttled", true, "Retry throttled ListTasks calls before failing a check")
}

// newTaskLister builds the lister used by check, wait and serve.
// Tests replace it.
var newTaskLister = func(ctx context.Context, c config.AWSConfig, logger *slog.Logger) (lister.TaskLister, error) {
	awsCfg, err := config.LoadAWS(ctx, c)
	if err != nil {
		return nil, err
	}
	var optFns []func(*ecs.Options)
	if c.Endpoint != "" {
		optFns = append(optFns, func(o *ecs.Options) {
			o.BaseEndpoint = aws.String(c.Endpoint)
		})
	}
	var l lister.TaskLister = lister.NewECSListerFromConfig(awsCfg, logger, optFns...)
	if c.Retry {
		l = lister.NewRetrying(l, lister.DefaultRetryConfig(), logger)
	}
	return l, nil
}
