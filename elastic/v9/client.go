package v9

import (
	"net/http"

	"github.com/elastic/go-elasticsearch/v9"

	v8 "github.com/pteich/esxport/elastic/v8"
)

// NewClient connects with the 9.x client. The request layer is shared with v8 since
// esapi requests only need a transport; the v9 client adds the matching
// compatibility headers and product check.
func NewClient(cfg elasticsearch.Config) (*v8.Client, error) {
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return v8.NewFromTransport(client), nil
}

func NewConfig(url, username, password string, httpClient *http.Client) elasticsearch.Config {
	return elasticsearch.Config{
		Addresses: []string{url},
		Username:  username,
		Password:  password,
		Transport: httpClient.Transport,
	}
}
