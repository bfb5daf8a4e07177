package analytics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
)

// NoStatistics is the full report of an empty ledger.
const NoStatistics = "No statistics available"

type Period string

const (
	PeriodDay  Period = "day"
	PeriodWeek Period = "week"
	PeriodAll  Period = "all"
)

// ParsePeriod accepts day, week or all. An empty string means day.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PeriodDay, nil
	case PeriodDay, PeriodWeek, PeriodAll:
		return p, nil
	default:
		return "", fmt.Errorf("%q: %w", s, ErrPeriod)
	}
}

// Summary aggregates the days From..To inclusive.
type Summary struct {
	Period      Period
	From, To    string
	TotalCost   float64
	TotalTokens int
	Requests    int
	Models      map[string]ModelUsage
}

func (s Summary) title() string {
	switch s.Period {
	case PeriodWeek:
		return fmt.Sprintf("Weekly report - %s to %s", s.From, s.To)
	case PeriodAll:
		return fmt.Sprintf("Full report - %s to %s", s.From, s.To)
	default:
		return fmt.Sprintf("Daily report - %s", s.To)
	}
}

// RenderReport formats s as markdown with models in name order.
func RenderReport(s Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", s.title())
	b.WriteString("## Summary\n")
	fmt.Fprintf(&b, "- Total requests: %s\n", humanize.Comma(int64(s.Requests)))
	fmt.Fprintf(&b, "- Total cost: $%.4f\n", s.TotalCost)
	fmt.Fprintf(&b, "- Total tokens: %s\n", humanize.Comma(int64(s.TotalTokens)))
	b.WriteString("\n## Usage by model")

	models := make([]string, 0, len(s.Models))
	for m := range s.Models {
		models = append(models, m)
	}
	sort.Strings(models)
	for _, m := range models {
		u := s.Models[m]
		fmt.Fprintf(&b, "\n### %s\n", m)
		fmt.Fprintf(&b, "- Requests: %s\n", humanize.Comma(int64(u.RequestCount)))
		fmt.Fprintf(&b, "- Input tokens: %s\n", humanize.Comma(int64(u.InputTokens)))
		fmt.Fprintf(&b, "- Output tokens: %s\n", humanize.Comma(int64(u.OutputTokens)))
	}
	return b.String()
}
