package notify

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/lucianovk/backup-nextcloud-user-webdav/internal/models"
)

const timeLayout = "2006-01-02 15:04:05"

// Compose renders the single human-readable status message for a run. The
// same text goes to the notification gateway and to standard output.
func Compose(adminName string, o models.RunOutcome) string {
	var b bytes.Buffer

	fmt.Fprintf(&b, "[%s] Nextcloud backup: ", adminName)

	switch o.Kind {
	case models.OutcomeAborted:
		fmt.Fprintf(&b, "ABORTED - %s\n", o.AbortReason)
		fmt.Fprintf(&b, "Last fully successful run: %s\n", daysPhrase(o.DaysSinceSuccess))

	case models.OutcomeNoUsers:
		b.WriteString("no users to back up\n")
		fmt.Fprintf(&b, "Last fully successful run: %s\n", daysPhrase(o.DaysSinceSuccess))

	case models.OutcomeFullSuccess:
		b.WriteString("OK\n")
		fmt.Fprintf(&b, "Started:    %s\n", o.Start.Format(timeLayout))
		fmt.Fprintf(&b, "Finished:   %s\n", o.End.Format(timeLayout))
		fmt.Fprintf(&b, "Duration:   %s\n", o.Duration.Round(time.Second))
		fmt.Fprintf(&b, "Free space: %s\n", o.FreeSpace)
		writeTable(&b, o.Summary)

	case models.OutcomeFailed:
		failed := strings.Join(o.Summary.FailedUsers, ", ")
		if failed == "" {
			failed = "unknown"
		}
		fmt.Fprintf(&b, "FAILED for %s\n", failed)
		fmt.Fprintf(&b, "Started:  %s\n", o.Start.Format(timeLayout))
		fmt.Fprintf(&b, "Finished: %s\n", o.End.Format(timeLayout))
		fmt.Fprintf(&b, "Last fully successful run: %s\n", daysPhrase(o.DaysSinceSuccess))
		writeTable(&b, o.Summary)
	}

	return strings.TrimRight(b.String(), "\n")
}

func writeTable(b *bytes.Buffer, s models.RunSummary) {
	if len(s.Results) == 0 {
		return
	}

	fmt.Fprintf(b, "Users: %d OK, %d failed\n", s.OK, s.Failed)
	for _, r := range s.Results {
		if r.Status == models.StatusOK {
			fmt.Fprintf(b, "  %-20s %10s  %s\n", r.Username, r.Size, r.Status)
			continue
		}
		fmt.Fprintf(b, "  %-20s %10s  %s (%s)\n", r.Username, r.Size, r.Status, r.Reason)
	}
}

func daysPhrase(days int) string {
	switch {
	case days < 0:
		return "never"
	case days == 0:
		return "today"
	case days == 1:
		return "1 day ago"
	default:
		return fmt.Sprintf("%d days ago", days)
	}
}
