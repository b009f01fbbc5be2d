package facebook

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/bonobos/tap-facebook/internal/streams"
)

// Compile-time port assertion.
var _ streams.Account = (*Client)(nil)

// connection is one page of an edge listing.
type connection struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

// edgePager walks an edge listing cursor by cursor, yielding entity ids.
type edgePager struct {
	client *Client
	first  string // path of the first page, empty once fetched
	next   string // paging.next URL, empty when exhausted
	ids    []string
	idx    int
	err    error
}

func (c *Client) newEdgePager(edge string) *edgePager {
	return &edgePager{client: c, first: c.accountPath(edge), idx: -1}
}

// Next implements streams.Pager.
func (p *edgePager) Next(ctx context.Context) bool {
	if p.err != nil {
		return false
	}

	p.idx++
	for p.idx >= len(p.ids) {
		if !p.fetch(ctx) {
			return false
		}
	}

	return true
}

// ID implements streams.Pager.
func (p *edgePager) ID() string {
	return p.ids[p.idx]
}

// Err implements streams.Pager.
func (p *edgePager) Err() error {
	return p.err
}

// fetch loads the next page into the buffer, returning false when the
// listing is exhausted or broken.
func (p *edgePager) fetch(ctx context.Context) bool {
	var (
		page connection
		err  error
	)

	switch {
	case p.first != "":
		query := url.Values{}
		query.Set("fields", "id")
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
		// Trailing empty page: stop without following further links.
		return false
	}

	p.ids = p.ids[:0]
	p.idx = 0

	for _, item := range page.Data {
		p.ids = append(p.ids, item.ID)
	}

	p.next = page.Paging.Next

	return true
}

// ListCampaigns implements streams.Account.
func (c *Client) ListCampaigns(_ context.Context) (streams.Pager, error) {
	return c.newEdgePager("campaigns"), nil
}

// ListAdSets implements streams.Account.
func (c *Client) ListAdSets(_ context.Context) (streams.Pager, error) {
	return c.newEdgePager("adsets"), nil
}

// ListAds implements streams.Account.
func (c *Client) ListAds(_ context.Context) (streams.Pager, error) {
	return c.newEdgePager("ads"), nil
}

// ListAdCreatives implements streams.Account.
func (c *Client) ListAdCreatives(_ context.Context) (streams.Pager, error) {
	return c.newEdgePager("adcreatives"), nil
}

// ListCampaignAds implements streams.Account.
func (c *Client) ListCampaignAds(_ context.Context, campaignID string) (streams.Pager, error) {
	return &edgePager{client: c, first: campaignID + "/ads", idx: -1}, nil
}

// ReadNode implements streams.Account: one GET for the requested fields of
// a single entity, decoded as a flat attribute mapping.
func (c *Client) ReadNode(ctx context.Context, id string, fields []string) (map[string]any, error) {
	query := url.Values{}
	query.Set("fields", strings.Join(fields, ","))

	node := map[string]any{}
	if err := c.get(ctx, id, query, &node); err != nil {
		return nil, fmt.Errorf("read node %s: %w", id, err)
	}

	return node, nil
}
