package facebook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/bonobos/tap-facebook/internal/insights"
	"github.com/bonobos/tap-facebook/internal/state"
)

// Compile-time port assertion.
var _ insights.Service = (*Client)(nil)

// SubmitJob implements insights.Service: an asynchronous report request
// against the account's insights edge. Transient platform failures are
// surfaced as "job did not start" so the caller's submission retry policy
// applies; everything else propagates as-is.
func (c *Client) SubmitJob(ctx context.Context, params insights.Params) (insights.JobHandle, error) {
	var resp struct {
		ReportRunID string `json:"report_run_id"`
	}

	err := c.post(ctx, c.accountPath("insights"), reportForm(params), &resp)
	if err != nil {
		var graphErr *GraphError
		if errors.As(err, &graphErr) && graphErr.Retryable() {
			return "", fmt.Errorf("%w: %w", insights.ErrJobNotStarted, err)
		}

		return "", fmt.Errorf("submit insights job: %w", err)
	}

	if resp.ReportRunID == "" {
		return "", fmt.Errorf("%w: empty report_run_id", insights.ErrJobNotStarted)
	}

	return insights.JobHandle(resp.ReportRunID), nil
}

// PollJob implements insights.Service.
func (c *Client) PollJob(ctx context.Context, handle insights.JobHandle) (insights.JobState, error) {
	query := url.Values{}
	query.Set("fields", "async_status,async_percent_completion")

	var resp struct {
		AsyncStatus            string `json:"async_status"`
		AsyncPercentCompletion int    `json:"async_percent_completion"`
	}

	if err := c.get(ctx, string(handle), query, &resp); err != nil {
		return insights.JobState{}, fmt.Errorf("poll job %s: %w", handle, err)
	}

	return insights.JobState{
		Status:          insights.JobStatus(resp.AsyncStatus),
		PercentComplete: resp.AsyncPercentCompletion,
	}, nil
}

// JobResults implements insights.Service. Pages are fetched lazily as the
// pager advances.
func (c *Client) JobResults(_ context.Context, handle insights.JobHandle) (insights.ResultPager, error) {
	return &resultPager{
		client: c,
		first:  string(handle) + "/insights",
		idx:    -1,
	}, nil
}

// resultPage is one page of report rows. Rows stay raw mappings; the
// transformation layer owns their typing.
type resultPage struct {
	Data   []map[string]any `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

// resultPager walks a completed report's result pages.
type resultPager struct {
	client *Client
	first  string
	next   string
	rows   []map[string]any
	idx    int
	err    error
}

// Next implements insights.ResultPager.
func (p *resultPager) Next(ctx context.Context) bool {
	if p.err != nil {
		return false
	}

	p.idx++
	for p.idx >= len(p.rows) {
		if !p.fetch(ctx) {
			return false
		}
	}

	return true
}

// Row implements insights.ResultPager.
func (p *resultPager) Row() map[string]any {
	return p.rows[p.idx]
}

// Err implements insights.ResultPager.
func (p *resultPager) Err() error {
	return p.err
}

func (p *resultPager) fetch(ctx context.Context) bool {
	var (
		page resultPage
		err  error
	)

	switch {
	case p.first != "":
		query := url.Values{}
		query.Set("limit", strconv.Itoa(p.client.pageSize))

		err = p.client.get(ctx, p.first, query, &page)
		p.first = ""
	case p.next != "":
		err = p.client.getURL(ctx, p.next, &page)
		p.next = ""
	default:
		return false
	}

	if err != nil {
		p.err = err

		return false
	}

	if len(page.Data) == 0 {
		return false
	}

	p.rows = page.Data
	p.idx = 0
	p.next = page.Paging.Next

	return true
}

// reportForm serializes report parameters the way the insights edge
// expects: list parameters as JSON arrays, the date range as a JSON
// time_range object.
func reportForm(params insights.Params) url.Values {
	form := url.Values{}
	form.Set("fields", jsonList(params.Fields))
	form.Set("action_breakdowns", jsonList(params.ActionBreakdowns))
	form.Set("action_attribution_windows", jsonList(params.ActionAttributionWindows))
	form.Set("time_increment", strconv.Itoa(params.TimeIncrement))
	form.Set("limit", strconv.Itoa(params.Limit))
	form.Set("time_range", fmt.Sprintf(`{"since":"%s","until":"%s"}`,
		params.Since.Format(state.DateLayout), params.Until.Format(state.DateLayout)))

	if params.Level != "" {
		form.Set("level", params.Level)
	}

	if len(params.Breakdowns) > 0 {
		form.Set("breakdowns", jsonList(params.Breakdowns))
	}

	return form
}

func jsonList(values []string) string {
	if len(values) == 0 {
		return "[]"
	}

	encoded, _ := json.Marshal(values)

	return string(encoded)
}
