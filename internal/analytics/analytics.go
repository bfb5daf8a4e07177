// Package analytics is the usage ledger: per-day request, token and cost
// totals with a per-model breakdown, persisted after every update.
package analytics

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"kbot/internal/llm"
	"kbot/internal/metrics"
	"kbot/internal/storage"
)

const dateLayout = "2006-01-02"

var (
	ErrNoData = errors.New("no usage data")
	ErrPeriod = errors.New("unknown report period")
)

type ModelUsage struct {
	RequestCount int `json:"requests"`
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// DailyUsage is the record for one calendar day.
type DailyUsage struct {
	TotalCost   float64               `json:"total_cost"`
	TotalTokens int                   `json:"total_tokens"`
	Requests    int                   `json:"requests"`
	Models      map[string]ModelUsage `json:"models"`
}

func (d DailyUsage) clone() DailyUsage {
	out := d
	out.Models = make(map[string]ModelUsage, len(d.Models))
	for m, u := range d.Models {
		out.Models[m] = u
	}
	return out
}

type Options struct {
	StatsFile  string
	ReportsDir string
	Catalog    *llm.Catalog
	Now        func() time.Time
	Logger     zerolog.Logger
	Metrics    *metrics.Metrics
}

type Ledger struct {
	mu   sync.Mutex
	days map[string]DailyUsage

	statsFile  string
	reportsDir string
	catalog    *llm.Catalog
	now        func() time.Time
	log        zerolog.Logger
	metrics    *metrics.Metrics
}

// Open loads the stats file. A missing file starts an empty ledger; a corrupt
// one is logged and also starts empty.
func Open(opts Options) *Ledger {
	l := &Ledger{
		days:       make(map[string]DailyUsage),
		statsFile:  opts.StatsFile,
		reportsDir: opts.ReportsDir,
		catalog:    opts.Catalog,
		now:        opts.Now,
		log:        opts.Logger,
		metrics:    opts.Metrics,
	}
	if l.catalog == nil {
		l.catalog = llm.DefaultCatalog()
	}
	if l.now == nil {
		l.now = time.Now
	}
	var days map[string]DailyUsage
	if _, err := storage.ReadJSON(l.statsFile, &days); err != nil {
		l.log.Error().Err(err).Str("path", l.statsFile).Msg("usage stats unreadable, starting empty")
		return l
	}
	for d, u := range days {
		if u.Models == nil {
			u.Models = make(map[string]ModelUsage)
		}
		l.days[d] = u
	}
	return l
}

// Track records one completed request against today and returns its cost.
// The in-memory record is updated even when persisting it fails.
func (l *Ledger) Track(model string, inputTokens, outputTokens int) (float64, error) {
	rates, err := l.catalog.RatesFor(model)
	if err != nil {
		return 0, err
	}
	cost := float64(inputTokens)/1000*rates.InputPer1K + float64(outputTokens)/1000*rates.OutputPer1K

	l.mu.Lock()
	defer l.mu.Unlock()
	today := l.today()
	day, ok := l.days[today]
	if !ok {
		day = DailyUsage{Models: make(map[string]ModelUsage)}
	}
	day.TotalCost += cost
	day.TotalTokens += inputTokens + outputTokens
	day.Requests++
	usage := day.Models[model]
	usage.RequestCount++
	usage.InputTokens += inputTokens
	usage.OutputTokens += outputTokens
	day.Models[model] = usage
	l.days[today] = day

	l.metrics.Usage(model, inputTokens, outputTokens, cost)
	l.log.Info().Str("model", model).Int("input_tokens", inputTokens).Int("output_tokens", outputTokens).
		Float64("cost", cost).Msg("request tracked")

	if err := storage.WriteJSON(l.statsFile, l.days); err != nil {
		l.metrics.PersistenceFailure("ledger")
		return cost, err
	}
	return cost, nil
}

// Summarize aggregates the records of period. ok is false only for PeriodAll
// on an empty ledger.
func (l *Ledger) Summarize(p Period) (Summary, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	today := l.today()
	s := Summary{Period: p, To: today, Models: make(map[string]ModelUsage)}
	switch p {
	case PeriodWeek:
		s.From = l.now().AddDate(0, 0, -6).Format(dateLayout)
	case PeriodAll:
		if len(l.days) == 0 {
			return Summary{}, false
		}
		for d := range l.days {
			if s.From == "" || d < s.From {
				s.From = d
			}
		}
	default:
		s.From = today
	}
	for d, u := range l.days {
		if d < s.From || d > s.To {
			continue
		}
		s.TotalCost += u.TotalCost
		s.TotalTokens += u.TotalTokens
		s.Requests += u.Requests
		for m, usage := range u.Models {
			agg := s.Models[m]
			agg.RequestCount += usage.RequestCount
			agg.InputTokens += usage.InputTokens
			agg.OutputTokens += usage.OutputTokens
			s.Models[m] = agg
		}
	}
	return s, true
}

// Report renders the period's report and saves it under the reports
// directory. A failed save is logged; the text is still returned.
func (l *Ledger) Report(p Period) string {
	s, ok := l.Summarize(p)
	if !ok {
		return NoStatistics
	}
	text := RenderReport(s)
	path := filepath.Join(l.reportsDir, fmt.Sprintf("report_%s_%s.md", p, s.To))
	if err := storage.WriteFileAtomic(path, []byte(text), 0o644); err != nil {
		l.metrics.PersistenceFailure("reports")
		l.log.Error().Err(err).Str("path", path).Msg("save report")
		return text
	}
	l.log.Info().Str("path", path).Msg("report generated")
	return text
}

// Export writes the days between from and to (inclusive, ISO dates, empty
// for unbounded) as CSV and returns the file path.
func (l *Ledger) Export(from, to string) (string, error) {
	models := l.catalog.Models()
	header := []string{"date", "requests", "total_cost", "total_tokens"}
	for _, m := range models {
		header = append(header, m+"_requests", m+"_input_tokens", m+"_output_tokens")
	}

	l.mu.Lock()
	dates := make([]string, 0, len(l.days))
	for d := range l.days {
		if (from != "" && d < from) || (to != "" && d > to) {
			continue
		}
		dates = append(dates, d)
	}
	sort.Strings(dates)
	rows := make([][]string, 0, len(dates))
	for _, d := range dates {
		u := l.days[d]
		row := []string{
			d,
			strconv.Itoa(u.Requests),
			strconv.FormatFloat(u.TotalCost, 'f', -1, 64),
			strconv.Itoa(u.TotalTokens),
		}
		for _, m := range models {
			usage := u.Models[m]
			row = append(row, strconv.Itoa(usage.RequestCount), strconv.Itoa(usage.InputTokens), strconv.Itoa(usage.OutputTokens))
		}
		rows = append(rows, row)
	}
	today := l.today()
	l.mu.Unlock()

	if len(rows) == 0 {
		l.log.Warn().Msg("no usage data to export")
		return "", ErrNoData
	}

	var buf bytes.Buffer
	if err := csv.NewWriter(&buf).WriteAll(append([][]string{header}, rows...)); err != nil {
		return "", fmt.Errorf("encode csv: %w", err)
	}
	path := filepath.Join(l.reportsDir, fmt.Sprintf("stats_export_%s.csv", today))
	if err := storage.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		l.metrics.PersistenceFailure("reports")
		return "", err
	}
	l.log.Info().Str("path", path).Int("days", len(rows)).Msg("usage exported")
	return path, nil
}

// Snapshot returns a copy of every daily record keyed by ISO date.
func (l *Ledger) Snapshot() map[string]DailyUsage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]DailyUsage, len(l.days))
	for d, u := range l.days {
		out[d] = u.clone()
	}
	return out
}

func (l *Ledger) today() string {
	return l.now().Format(dateLayout)
}
