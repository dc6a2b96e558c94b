package tui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/logflow/pmdiscover/pkg/discovery"
	"github.com/logflow/pmdiscover/pkg/job"
)

func TestPrintSummaryCompleted(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, &job.Report{
		RunID:    "run-1",
		Status:   job.StatusCompleted,
		Rows:     1500,
		Cases:    40,
		Tasks:    7,
		Path:     discovery.PathDirect,
		Duration: 2500 * time.Millisecond,
		URIs:     []string{"gs://models/process_models/spot_to_invoice_20250601-123000.svg"},
	})

	out := buf.String()
	assert.Contains(t, out, "MODEL PUBLISHED")
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "1.5K in 40 cases")
	assert.Contains(t, out, "7 (direct)")
	assert.Contains(t, out, "2.5s")
	assert.Contains(t, out, "spot_to_invoice_20250601-123000.svg")
}

func TestPrintSummaryDegraded(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, &job.Report{
		Status: job.StatusDegraded,
		PNGErr: errors.New("png renderer unavailable"),
	})

	out := buf.String()
	assert.Contains(t, out, "WITH WARNINGS")
	assert.Contains(t, out, "png renderer unavailable")
}

func TestPrintHeader(t *testing.T) {
	var buf bytes.Buffer
	PrintHeader(&buf, "1.2.3")
	assert.Contains(t, buf.String(), "PMDISCOVER")
	assert.Contains(t, buf.String(), "v1.2.3")
}

func TestPrintSummarySkipped(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, &job.Report{Status: job.StatusSkippedEmpty})

	out := buf.String()
	assert.Contains(t, out, "NOTHING PUBLISHED")
	assert.NotContains(t, out, "Tasks:")
}

func TestPrintDFG(t *testing.T) {
	var buf bytes.Buffer
	PrintDFG(&buf, &discovery.Report{
		Meta: discovery.ReportMeta{SinceDays: 180, MinFreq: 1, Limit: 200},
		Edges: []discovery.ReportEdge{
			{From: "quote.request", To: "quote.sent", Freq: 12, P50Min: 95},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "last 180 days")
	assert.Contains(t, out, "quote.request")
	assert.Contains(t, out, "quote.sent")
	assert.Contains(t, out, "1h35m")
}

func TestPrintDFGEmpty(t *testing.T) {
	var buf bytes.Buffer
	PrintDFG(&buf, &discovery.Report{})
	assert.Contains(t, buf.String(), "no edges")
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "250ms", formatDuration(250*time.Millisecond))
	assert.Equal(t, "2m5s", formatDuration(125*time.Second))
	assert.Equal(t, "45m", formatMinutes(45))
	assert.Equal(t, "2d3h", formatMinutes(2*24*60+3*60+10))
	assert.Equal(t, "999", formatNumber(999))
	assert.Equal(t, "2.0M", formatNumber(2000000))
}

func TestProgress(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf)
	p.Stage("querying warehouse")
	p.Stage("rendering")
	p.Done()
}
