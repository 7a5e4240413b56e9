package v8

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/pteich/esxport/elastic"
)

// Client talks to the cluster through the typed esapi requests. Any transport that
// can perform an HTTP request works, which lets newer client majors reuse it.
type Client struct {
	transport esapi.Transport
}

var _ elastic.Client = (*Client)(nil)

func NewClient(cfg elasticsearch.Config) (*Client, error) {
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{transport: client}, nil
}

// NewFromTransport wraps an already configured transport.
func NewFromTransport(transport esapi.Transport) *Client {
	return &Client{transport: transport}
}

func NewConfig(url, username, password string, httpClient *http.Client) elasticsearch.Config {
	return elasticsearch.Config{
		Addresses: []string{url},
		Username:  username,
		Password:  password,
		Transport: httpClient.Transport,
	}
}

func (c *Client) Stop() {}

func (c *Client) IndexExists(ctx context.Context, indices []string) (bool, error) {
	req := esapi.IndicesExistsRequest{
		Index: indices,
	}
	res, err := req.Do(ctx, c.transport)
	if err != nil {
		return false, transportError(err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, readError(res)
	}
}

func (c *Client) GetMapping(ctx context.Context, index string) ([]string, error) {
	req := esapi.IndicesGetMappingRequest{
		Index: []string{index},
	}
	res, err := req.Do(ctx, c.transport)
	if err != nil {
		return nil, transportError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, readError(res)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, transportError(err)
	}
	return elastic.ParseMappingFields(body)
}

func (c *Client) Search(ctx context.Context, params elastic.SearchParams) (*elastic.Page, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(elastic.SearchBody(params)); err != nil {
		return nil, err
	}

	req := esapi.SearchRequest{
		Index:  strings.Split(params.Index, ","),
		Scroll: params.ScrollTTL,
		Body:   &buf,
	}
	res, err := req.Do(ctx, c.transport)
	if err != nil {
		return nil, transportError(err)
	}
	defer res.Body.Close()

	return readPage(res)
}

func (c *Client) ScrollContinue(ctx context.Context, scrollID string, ttl time.Duration) (*elastic.Page, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(map[string]string{"scroll_id": scrollID}); err != nil {
		return nil, err
	}

	req := esapi.ScrollRequest{
		Scroll: ttl,
		Body:   &buf,
	}
	res, err := req.Do(ctx, c.transport)
	if err != nil {
		return nil, transportError(err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", elastic.ErrScrollExpired, scrollID)
	}
	return readPage(res)
}

func (c *Client) ClearScroll(ctx context.Context, scrollIDs []string) error {
	if len(scrollIDs) == 0 {
		return nil
	}

	req := esapi.ClearScrollRequest{
		ScrollID: scrollIDs,
	}
	res, err := req.Do(ctx, c.transport)
	if err != nil {
		return transportError(err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return readError(res)
	}
	return nil
}

func readPage(res *esapi.Response) (*elastic.Page, error) {
	if res.IsError() {
		return nil, readError(res)
	}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, transportError(err)
	}
	return elastic.ParsePage(body)
}

func readError(res *esapi.Response) error {
	body, _ := io.ReadAll(res.Body)
	return elastic.NewStatusError(res.StatusCode, body)
}

func transportError(err error) error {
	if elastic.IsConnectionError(err) {
		return fmt.Errorf("%w: %w", elastic.ErrConnection, err)
	}
	return err
}
