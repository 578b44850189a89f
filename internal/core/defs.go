package core

import (
	"fmt"
	"strings"

	"jobmill/internal/config"
	"jobmill/internal/feed"
)

// buildDefinitions validates the config's job list and converts it into feed
// definitions. It is also the reload validator's workhorse: a config whose
// jobs don't build is rejected before commit.
func buildDefinitions(cfg *config.Config) ([]feed.Definition, error) {
	seen := map[string]bool{}
	defs := make([]feed.Definition, 0, len(cfg.Jobs))
	for i, jd := range cfg.Jobs {
		name := strings.TrimSpace(jd.Name)
		if name == "" {
			return nil, fmt.Errorf("jobs[%d]: name is required", i)
		}
		if seen[name] {
			return nil, fmt.Errorf("jobs[%d]: duplicate name %q", i, name)
		}
		seen[name] = true
		if !jd.IsEnabled() {
			continue
		}
		if len(jd.Command) == 0 {
			return nil, fmt.Errorf("jobs[%d] (%s): command is required", i, name)
		}
		spec, err := feed.ParseSchedule(jd.Schedule)
		if err != nil {
			return nil, fmt.Errorf("jobs[%d] (%s): %w", i, name, err)
		}
		timeout, err := config.ParseDurationField(fmt.Sprintf("jobs[%d].timeout", i), jd.Timeout)
		if err != nil {
			return nil, err
		}
		defs = append(defs, feed.Definition{
			Name:     name,
			Spec:     spec,
			Command:  jd.Command,
			Priority: jd.Priority,
			Timeout:  timeout,
		})
	}
	return defs, nil
}
