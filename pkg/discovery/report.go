package discovery

import (
	"sort"
	"time"

	"github.com/logflow/pmdiscover/pkg/eventlog"
)

// Activities required by the quote-and-invoice case filter.
const (
	ActivityQuoteRequest    = "quote.request"
	ActivityInvoiceReceived = "invoice.received.vendor"
)

// ReportParams controls a DFG report. Use Normalize before reading it.
type ReportParams struct {
	SinceDays              int
	MinFreq                int
	Limit                  int
	RequireQuoteAndInvoice bool
}

// DefaultReportParams returns the defaults of the report command.
func DefaultReportParams() ReportParams {
	return ReportParams{SinceDays: 180, MinFreq: 1, Limit: 200}
}

// Normalize clamps the parameters: SinceDays to [1, 3650], MinFreq to at
// least 1 and Limit to [1, 2000].
func (p ReportParams) Normalize() ReportParams {
	p.SinceDays = clamp(p.SinceDays, 1, 3650)
	if p.MinFreq < 1 {
		p.MinFreq = 1
	}
	p.Limit = clamp(p.Limit, 1, 2000)
	return p
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ReportMeta echoes the effective parameters.
type ReportMeta struct {
	SinceDays   int       `json:"sinceDays"`
	MinFreq     int       `json:"minFreq"`
	Limit       int       `json:"limit"`
	Filtered    bool      `json:"filtered"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// ReportEdge is a directly-follows edge with its median transition time.
type ReportEdge struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Freq   int64  `json:"freq"`
	P50Min int64  `json:"p50_min"`
}

// Report is a performance-annotated directly-follows graph.
type Report struct {
	Meta  ReportMeta   `json:"meta"`
	Edges []ReportEdge `json:"edges"`
}

// BuildReport computes every directly-follows edge of log with its frequency
// and median transition time in whole minutes, keeps edges seen at least
// MinFreq times, and returns the Limit most frequent.
func BuildReport(log *eventlog.Log, params ReportParams, now time.Time) *Report {
	params = params.Normalize()

	type key struct{ from, to string }
	minutes := make(map[key][]int64)
	var order []key

	if log != nil {
		for _, t := range log.Traces() {
			if params.RequireQuoteAndInvoice && !hasQuoteAndInvoice(t) {
				continue
			}
			for i := 0; i+1 < len(t.Events); i++ {
				cur, next := t.Events[i], t.Events[i+1]
				k := key{cur.Activity, next.Activity}
				if _, ok := minutes[k]; !ok {
					order = append(order, k)
				}
				minutes[k] = append(minutes[k], int64(next.Timestamp.Sub(cur.Timestamp)/time.Minute))
			}
		}
	}

	edges := make([]ReportEdge, 0, len(order))
	for _, k := range order {
		m := minutes[k]
		if len(m) < params.MinFreq {
			continue
		}
		edges = append(edges, ReportEdge{From: k.from, To: k.to, Freq: int64(len(m)), P50Min: median(m)})
	}
	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].Freq != edges[j].Freq {
			return edges[i].Freq > edges[j].Freq
		}
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	if len(edges) > params.Limit {
		edges = edges[:params.Limit]
	}

	return &Report{
		Meta: ReportMeta{
			SinceDays:   params.SinceDays,
			MinFreq:     params.MinFreq,
			Limit:       params.Limit,
			Filtered:    params.RequireQuoteAndInvoice,
			GeneratedAt: now.UTC(),
		},
		Edges: edges,
	}
}

func hasQuoteAndInvoice(t eventlog.Trace) bool {
	var quote, invoice bool
	for _, e := range t.Events {
		switch e.Activity {
		case ActivityQuoteRequest:
			quote = true
		case ActivityInvoiceReceived:
			invoice = true
		}
	}
	return quote && invoice
}

// median returns the lower median of values. values is reordered.
func median(values []int64) int64 {
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	return values[(len(values)-1)/2]
}
