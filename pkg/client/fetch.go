package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Sternrassler/catalog-sync/pkg/catalog"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 32 << 20

// FetchPage fetches limit records starting at offset and normalizes the
// body. A body of unrecognized shape is logged and returned as an empty page
// with Unrecognized set, not as an error.
func (c *Client) FetchPage(ctx context.Context, limit, offset int) (catalog.Page, error) {
	if limit <= 0 {
		return catalog.Page{}, fmt.Errorf("limit must be positive (got %d)", limit)
	}
	if offset < 0 {
		return catalog.Page{}, fmt.Errorf("offset must be non-negative (got %d)", offset)
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))

	body, err := c.getBody(ctx, c.config.ListPath, query.Encode())
	if err != nil {
		return catalog.Page{}, err
	}

	page, err := catalog.DecodePage(body)
	var shapeErr *catalog.ShapeError
	if errors.As(err, &shapeErr) {
		unrecognizedPagesTotal.Inc()
		c.logger.Warn().
			Err(err).
			Int("limit", limit).
			Int("offset", offset).
			Msg("Unrecognized page shape - treating as empty page")
		return catalog.Page{Unrecognized: true}, nil
	}
	if err != nil {
		return catalog.Page{}, err
	}

	c.logger.Debug().
		Int("limit", limit).
		Int("offset", offset).
		Int("records", len(page.Records)).
		Msg("Fetched page")
	return page, nil
}

// FetchRecord fetches one record by id or name.
func (c *Client) FetchRecord(ctx context.Context, idOrName string) (catalog.Record, error) {
	if idOrName == "" {
		return catalog.Record{}, errors.New("id or name is required")
	}

	body, err := c.getBody(ctx, c.config.ListPath+"/"+url.PathEscape(idOrName), "")
	if err != nil {
		return catalog.Record{}, err
	}
	return catalog.DecodeRecord(body)
}

func (c *Client) getBody(ctx context.Context, path, query string) ([]byte, error) {
	resp, err := c.Get(ctx, path, query)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, statusError(resp)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{ErrorClass: ErrorClassNetwork, Message: "read response body", Err: err}
	}
	return body, nil
}
