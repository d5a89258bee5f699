package jobs

import (
	"fmt"
	"strings"
)

// MetricsText renders tracker counters in the Prometheus text exposition
// format so external scrapers can consume them without a client library.
func (t *Tracker) MetricsText() string {
	var b strings.Builder

	b.WriteString("# HELP ledgerkeep_job_executions_total Finished job executions retained in history.\n")
	b.WriteString("# TYPE ledgerkeep_job_executions_total counter\n")
	names := t.Names()
	for _, name := range names {
		stats := t.GetJobStats(name)
		fmt.Fprintf(&b, "ledgerkeep_job_executions_total{job=%q,status=\"success\"} %d\n", name, stats.SuccessfulExecutions)
		fmt.Fprintf(&b, "ledgerkeep_job_executions_total{job=%q,status=\"failure\"} %d\n", name, stats.FailedExecutions)
	}

	b.WriteString("# HELP ledgerkeep_job_duration_avg_ms Average duration of retained executions.\n")
	b.WriteString("# TYPE ledgerkeep_job_duration_avg_ms gauge\n")
	for _, name := range names {
		stats := t.GetJobStats(name)
		fmt.Fprintf(&b, "ledgerkeep_job_duration_avg_ms{job=%q} %.3f\n", name, stats.AverageDurationMs)
	}

	b.WriteString("# HELP ledgerkeep_jobs_running Jobs currently executing.\n")
	b.WriteString("# TYPE ledgerkeep_jobs_running gauge\n")
	fmt.Fprintf(&b, "ledgerkeep_jobs_running %d\n", len(t.GetStatus()))

	return b.String()
}
