package v7

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/olivere/elastic/v7"

	elasticsearch "github.com/pteich/esxport/elastic"
)

type Client struct {
	client *elastic.Client
}

var _ elasticsearch.Client = (*Client)(nil)

func NewClient(esOpts []elastic.ClientOptionFunc) (*Client, error) {
	client, err := elastic.NewClient(esOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{client: client}, nil
}

func (c *Client) Stop() {
	c.client.Stop()
}

func (c *Client) IndexExists(ctx context.Context, indices []string) (bool, error) {
	exists, err := c.client.IndexExists(indices...).Do(ctx)
	if err != nil {
		return false, convertError(err)
	}
	return exists, nil
}

func (c *Client) GetMapping(ctx context.Context, index string) ([]string, error) {
	mapping, err := c.client.GetMapping().Index(index).Do(ctx)
	if err != nil {
		return nil, convertError(err)
	}
	body, err := json.Marshal(mapping)
	if err != nil {
		return nil, err
	}
	return elasticsearch.ParseMappingFields(body)
}

func (c *Client) Search(ctx context.Context, params elasticsearch.SearchParams) (*elasticsearch.Page, error) {
	res, err := c.client.PerformRequest(ctx, elastic.PerformRequestOptions{
		Method: http.MethodPost,
		Path:   "/" + params.Index + "/_search",
		Params: url.Values{"scroll": []string{elasticsearch.FormatDuration(params.ScrollTTL)}},
		Body:   elasticsearch.SearchBody(params),
	})
	if err != nil {
		return nil, convertError(err)
	}
	return elasticsearch.ParsePage(res.Body)
}

func (c *Client) ScrollContinue(ctx context.Context, scrollID string, ttl time.Duration) (*elasticsearch.Page, error) {
	res, err := c.client.PerformRequest(ctx, elastic.PerformRequestOptions{
		Method: http.MethodPost,
		Path:   "/_search/scroll",
		Body: map[string]interface{}{
			"scroll":    elasticsearch.FormatDuration(ttl),
			"scroll_id": scrollID,
		},
	})
	if err != nil {
		if elastic.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", elasticsearch.ErrScrollExpired, scrollID)
		}
		return nil, convertError(err)
	}
	return elasticsearch.ParsePage(res.Body)
}

func (c *Client) ClearScroll(ctx context.Context, scrollIDs []string) error {
	if len(scrollIDs) == 0 {
		return nil
	}
	_, err := c.client.ClearScroll(scrollIDs...).Do(ctx)
	if err != nil && !elastic.IsNotFound(err) {
		return convertError(err)
	}
	return nil
}

func convertError(err error) error {
	var esErr *elastic.Error
	if errors.As(err, &esErr) {
		se := &elasticsearch.StatusError{Status: esErr.Status}
		if esErr.Details != nil {
			se.Type = esErr.Details.Type
			se.Reason = esErr.Details.Reason
		}
		return se
	}
	if elastic.IsConnErr(err) || elasticsearch.IsConnectionError(err) {
		return fmt.Errorf("%w: %w", elasticsearch.ErrConnection, err)
	}
	return err
}

func SetHttpClient(httpClient *http.Client) elastic.ClientOptionFunc {
	return elastic.SetHttpClient(httpClient)
}

func SetURL(urls ...string) elastic.ClientOptionFunc {
	return elastic.SetURL(urls...)
}

func SetSniff(enabled bool) elastic.ClientOptionFunc {
	return elastic.SetSniff(enabled)
}

func SetHealthcheckInterval(interval time.Duration) elastic.ClientOptionFunc {
	return elastic.SetHealthcheckInterval(interval)
}

func SetErrorLog(logger *log.Logger) elastic.ClientOptionFunc {
	return elastic.SetErrorLog(logger)
}

func SetTraceLog(logger *log.Logger) elastic.ClientOptionFunc {
	return elastic.SetTraceLog(logger)
}

func SetBasicAuth(username, password string) elastic.ClientOptionFunc {
	return elastic.SetBasicAuth(username, password)
}
