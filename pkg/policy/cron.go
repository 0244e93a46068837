package policy

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/robfig/cron/v3"
)

// CronSpecs renders the schedule as standard five field cron expressions,
// one per run time.
func (s *SimpleSchedulePolicy) CronSpecs() ([]string, error) {
	if err := s.Validate(); err != nil {
		return nil, errors.Trace(err)
	}

	dow := "*"
	if s.Frequency == Weekly {
		days := make([]int, 0, len(s.RunDays))
		for _, d := range s.RunDays {
			days = append(days, int(d))
		}
		sort.Ints(days)
		parts := make([]string, len(days))
		for i, d := range days {
			parts[i] = strconv.Itoa(d)
		}
		dow = strings.Join(parts, ",")
	}

	specs := make([]string, 0, len(s.RunTimes))
	for _, t := range s.RunTimes {
		spec := fmt.Sprintf("%d %d * * %s", t.Minute(), t.Hour(), dow)
		if _, err := cron.ParseStandard(spec); err != nil {
			return nil, errors.Annotatef(err, "render run time %s", t.Format("15:04"))
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// NextRun returns the first run instant strictly after the given time, in UTC.
func (s *SimpleSchedulePolicy) NextRun(after time.Time) (time.Time, error) {
	specs, err := s.CronSpecs()
	if err != nil {
		return time.Time{}, err
	}
	after = after.UTC()
	var next time.Time
	for _, spec := range specs {
		sched, err := cron.ParseStandard("CRON_TZ=UTC " + spec)
		if err != nil {
			return time.Time{}, errors.Trace(err)
		}
		n := sched.Next(after)
		if next.IsZero() || n.Before(next) {
			next = n
		}
	}
	return next.UTC(), nil
}
