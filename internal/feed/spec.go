package feed

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// SpecKind distinguishes how a schedule string was interpreted.
type SpecKind int

const (
	SpecCron SpecKind = iota
	SpecInterval
)

// Spec is a parsed schedule.
type Spec struct {
	Kind     SpecKind
	Source   string // "cron" or "duration"
	Every    time.Duration
	Schedule cron.Schedule
}

// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
var specParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule accepts either a cron expression or a Go duration:
//
//	"*/5 * * * *"      cron
//	"cron:0 0 * * *"   cron, explicit prefix
//	"10m"              interval
//	"every:45s"        interval, explicit prefix
func ParseSchedule(raw string) (Spec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Spec{}, fmt.Errorf("empty schedule")
	}

	if rest, ok := strings.CutPrefix(s, "cron:"); ok {
		sch, err := specParser.Parse(strings.TrimSpace(rest))
		if err != nil {
			return Spec{}, fmt.Errorf("invalid cron spec %q: %w", rest, err)
		}
		return Spec{Kind: SpecCron, Source: "cron", Schedule: sch}, nil
	}
	if rest, ok := strings.CutPrefix(s, "every:"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(rest))
		if err != nil || d <= 0 {
			return Spec{}, fmt.Errorf("invalid interval %q", rest)
		}
		return Spec{Kind: SpecInterval, Source: "duration", Every: d, Schedule: cron.Every(d)}, nil
	}

	// Bare duration first: "10m" is a valid descriptor-less string that the
	// cron parser would reject anyway, but the order keeps intent obvious.
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return Spec{Kind: SpecInterval, Source: "duration", Every: d, Schedule: cron.Every(d)}, nil
	}

	sch, err := specParser.Parse(s)
	if err != nil {
		return Spec{}, fmt.Errorf("schedule %q is neither a duration nor a cron spec: %w", raw, err)
	}
	return Spec{Kind: SpecCron, Source: "cron", Schedule: sch}, nil
}
