package spool

import (
	"context"
	"fmt"
	"strings"

	"github.com/marmos91/dittolpd/pkg/store/jobs"
)

// Queue listings follow the layout of BSD lpq:
//
//	lp is ready and printing
//	Rank   Owner      Job  Files                                 Total Size
//	1st    ibmuser    42   PAYROLL                               60 bytes
//
// The long form prints one block per job listing every data file.

const shortHeader = "Rank   Owner      Job  Files                                 Total Size\n"

// queueState renders the listing of queueName restricted to jobIDs (job
// numbers or owners; empty selects every job). Ranks are positions in the
// full queue.
func (s *Spool) queueState(ctx context.Context, queueName string, jobIDs []string, long bool) (string, error) {
	q, err := s.knownQueue(queueName)
	if err != nil {
		return "", err
	}
	list, err := s.jobs.List(ctx, queueName)
	if err != nil {
		return "", fmt.Errorf("list jobs of %s: %w", queueName, err)
	}

	var b strings.Builder
	b.WriteString(statusLine(q, len(list)))

	type ranked struct {
		rank int
		job  *jobs.Job
	}
	var selected []ranked
	for i, j := range list {
		if len(jobIDs) == 0 || matchesAny(j, jobIDs) {
			selected = append(selected, ranked{rank: i + 1, job: j})
		}
	}

	if len(selected) == 0 {
		b.WriteString("no entries\n")
		return b.String(), nil
	}

	if !long {
		b.WriteString(shortHeader)
		for _, r := range selected {
			fmt.Fprintf(&b, "%-7s%-11s%-5d%-38s%d bytes\n",
				ordinal(r.rank), truncate(r.job.Owner, 10), r.job.Number,
				truncate(filesColumn(r.job), 37), r.job.Size())
		}
		return b.String(), nil
	}

	for _, r := range selected {
		j := r.job
		fmt.Fprintf(&b, "\n%s: %-33s [job %03d%s]\n", j.Owner, ordinal(r.rank), j.Number, j.Host)
		for _, f := range j.DataFiles {
			fmt.Fprintf(&b, "        %-32s %d bytes\n", f.Name, f.Size)
		}
	}
	return b.String(), nil
}

func statusLine(q queue, n int) string {
	switch {
	case q.locked:
		return q.name + " is ready\n" + q.name + ": queuing is disabled\n"
	case n > 0:
		return q.name + " is ready and printing\n"
	default:
		return q.name + " is ready\n"
	}
}

// filesColumn names a job the way lpq does: its job name, else its data
// files.
func filesColumn(j *jobs.Job) string {
	if j.JobName != "" {
		return j.JobName
	}
	names := make([]string, len(j.DataFiles))
	for i, f := range j.DataFiles {
		names[i] = f.Name
	}
	return strings.Join(names, ", ")
}

// ordinal renders 1st, 2nd, 3rd, 4th, ..., 11th, 12th, 13th, 21st.
func ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
