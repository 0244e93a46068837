// This file is part of bizfly-vm-protection
//
// Copyright (C) 2020  BizFly Cloud
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>

package cmd

import (
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bizflycloud/bizflyctl/formatter"
	"github.com/spf13/cobra"

	"github.com/bizflycloud/bizfly-vm-protection/pkg/policy"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/server"
)

var (
	retentionHeaders = []string{"Tier", "Keep", "Days", "Times"}
	scheduleFile     string
	retentionFile    string
)

// policyView decodes server.PolicyView with concrete schedule and retention types.
type policyView struct {
	Name      string                          `json:"name"`
	Schedule  *policy.SimpleSchedulePolicy    `json:"schedule"`
	Retention *policy.LongTermRetentionPolicy `json:"retention"`
	CronSpecs []string                        `json:"cron_specs"`
	NextRun   *time.Time                      `json:"next_run"`
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage protection policies.",
	Run: func(cmd *cobra.Command, args []string) {
		if err := cmd.Help(); err != nil {
			logger.Error(err.Error())
		}
	},
}

var policyCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a policy from schedule and retention YAML documents.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		body := readPolicyBody(args[0])
		var view policyView
		mustDo(http.MethodPost, "/policies/", body, &view)
		printPolicy(&view)
	},
}

var policyModifyCmd = &cobra.Command{
	Use:   "modify NAME",
	Short: "Replace the schedule, the retention, or both, of a policy.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if scheduleFile == "" && retentionFile == "" {
			fmt.Fprintln(os.Stderr, "at least one of --schedule and --retention is required")
			os.Exit(1)
		}
		body := readPolicyBody(args[0])
		var view policyView
		mustDo(http.MethodPut, "/policies/"+url.PathEscape(args[0]), body, &view)
		printPolicy(&view)
	},
}

var policyShowCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Show a policy.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var view policyView
		mustDo(http.MethodGet, "/policies/"+url.PathEscape(args[0]), nil, &view)
		printPolicy(&view)
	},
}

var policyDefaultCmd = &cobra.Command{
	Use:   "default",
	Short: "Show the default schedule and retention the agent would propose.",
	Run: func(cmd *cobra.Command, args []string) {
		var def struct {
			Schedule  *policy.SimpleSchedulePolicy    `json:"schedule"`
			Retention *policy.LongTermRetentionPolicy `json:"retention"`
		}
		mustDo(http.MethodGet, "/policies/default", nil, &def)
		printPolicy(&policyView{Name: "default", Schedule: def.Schedule, Retention: def.Retention})
	},
}

func readPolicyBody(name string) *server.PolicyBody {
	body := &server.PolicyBody{Name: name}
	for _, f := range []struct {
		path string
		dst  *string
	}{{scheduleFile, &body.Schedule}, {retentionFile, &body.Retention}} {
		if f.path == "" {
			continue
		}
		buf, err := ioutil.ReadFile(f.path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		*f.dst = string(buf)
	}
	return body
}

func printPolicy(v *policyView) {
	fmt.Println("Policy:", v.Name)
	if v.Schedule != nil {
		doc, err := policy.MarshalScheduleYAML(v.Schedule)
		if err == nil {
			fmt.Print(string(doc))
		}
	}
	if len(v.CronSpecs) > 0 {
		fmt.Println("Cron:", strings.Join(v.CronSpecs, "; "))
	}
	if v.NextRun != nil {
		fmt.Println("Next run:", humanTime(v.NextRun))
	}
	if v.Retention != nil {
		formatter.Output(retentionHeaders, retentionRows(v.Retention))
	}
}

func retentionRows(r *policy.LongTermRetentionPolicy) [][]string {
	var data [][]string
	if r.IsDailyScheduleEnabled && r.DailySchedule != nil {
		s := r.DailySchedule
		data = append(data, []string{"daily", strconv.Itoa(s.DurationCountInDays) + " days", "every day", clockTimes(s.RetentionTimes)})
	}
	if r.IsWeeklyScheduleEnabled && r.WeeklySchedule != nil {
		s := r.WeeklySchedule
		data = append(data, []string{"weekly", strconv.Itoa(s.DurationCountInWeeks) + " weeks", weekdays(s.DaysOfTheWeek), clockTimes(s.RetentionTimes)})
	}
	if r.IsMonthlyScheduleEnabled && r.MonthlySchedule != nil {
		s := r.MonthlySchedule
		data = append(data, []string{"monthly", strconv.Itoa(s.DurationCountInMonths) + " months",
			selector(s.RetentionScheduleFormatType, s.RetentionScheduleDaily, s.RetentionScheduleWeekly), clockTimes(s.RetentionTimes)})
	}
	if r.IsYearlyScheduleEnabled && r.YearlySchedule != nil {
		s := r.YearlySchedule
		months := make([]string, 0, len(s.MonthsOfYear))
		for _, m := range s.MonthsOfYear {
			months = append(months, m.String()[:3])
		}
		days := selector(s.RetentionScheduleFormatType, s.RetentionScheduleDaily, s.RetentionScheduleWeekly)
		data = append(data, []string{"yearly", strconv.Itoa(s.DurationCountInYears) + " years",
			days + " of " + strings.Join(months, ","), clockTimes(s.RetentionTimes)})
	}
	return data
}

func selector(format policy.RetentionScheduleFormat, daily *policy.DailyRetentionFormat, weekly *policy.WeeklyRetentionFormat) string {
	switch {
	case format == policy.FormatDaily && daily != nil:
		parts := make([]string, 0, len(daily.DaysOfTheMonth))
		for _, d := range daily.DaysOfTheMonth {
			if d.IsLast {
				parts = append(parts, "last")
				continue
			}
			parts = append(parts, strconv.Itoa(d.Date))
		}
		return "day " + strings.Join(parts, ",")
	case format == policy.FormatWeekly && weekly != nil:
		weeks := make([]string, 0, len(weekly.WeeksOfTheMonth))
		for _, w := range weekly.WeeksOfTheMonth {
			weeks = append(weeks, strings.ToLower(w.String()))
		}
		return strings.Join(weeks, ",") + " " + weekdays(weekly.DaysOfTheWeek)
	}
	return "-"
}

func weekdays(days []time.Weekday) string {
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, d.String()[:3])
	}
	return strings.Join(out, ",")
}

func clockTimes(times []time.Time) string {
	out := make([]string, 0, len(times))
	for _, t := range times {
		out = append(out, t.UTC().Format("15:04"))
	}
	return strings.Join(out, ",")
}

func init() {
	for _, c := range []*cobra.Command{policyCreateCmd, policyModifyCmd} {
		c.Flags().StringVar(&scheduleFile, "schedule", "", "Schedule YAML document")
		c.Flags().StringVar(&retentionFile, "retention", "", "Retention YAML document")
	}
	_ = policyCreateCmd.MarkFlagRequired("schedule")
	_ = policyCreateCmd.MarkFlagRequired("retention")

	policyCmd.AddCommand(policyCreateCmd, policyModifyCmd, policyShowCmd, policyDefaultCmd)
	rootCmd.AddCommand(policyCmd)
}
