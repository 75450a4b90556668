package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var specParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseInterval accepts a cron expression, a descriptor such as "@hourly" or
// "@every 5m", or a bare Go duration such as "5m".
func ParseInterval(spec string) (cron.Schedule, error) {
	spec = strings.TrimSpace(spec)
	if d, err := time.ParseDuration(spec); err == nil {
		if d <= 0 {
			return nil, fmt.Errorf("trigger: interval must be positive: %s", spec)
		}
		return cron.Every(d), nil
	}
	sched, err := specParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("trigger: parse interval %q: %w", spec, err)
	}
	return sched, nil
}

// Every issues interval requests on the given schedule until ctx is
// cancelled.
func Every(ctx context.Context, spec string, logger *slog.Logger, notify func(Request)) error {
	sched, err := ParseInterval(spec)
	if err != nil {
		return err
	}
	c := cron.New(cron.WithParser(specParser), cron.WithLocation(time.UTC))
	c.Schedule(sched, cron.FuncJob(func() {
		notify(Request{Source: "interval"})
	}))
	c.Start()
	logger.Info("interval: started", slog.String("spec", spec))

	<-ctx.Done()
	<-c.Stop().Done()
	logger.Info("interval: stopped")
	return nil
}
