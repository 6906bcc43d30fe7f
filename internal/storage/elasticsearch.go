// Package storage indexes normalized scan records into Elasticsearch so runs
// stay searchable after their on-disk reports age out.
package storage

import (
	"context"
	"errors"
	"fmt"

	es "github.com/elastic/go-elasticsearch/v8"
)

const defaultMaxRetries = 3

// Config holds Elasticsearch connection settings.
type Config struct {
	Addresses []string
	APIKey    string
	Username  string
	Password  string
}

// NewClient creates a new Elasticsearch client.
func NewClient(cfg Config) (*es.Client, error) {
	if len(cfg.Addresses) == 0 {
		return nil, errors.New("no elasticsearch addresses configured")
	}

	clientConfig := es.Config{
		Addresses:  cfg.Addresses,
		MaxRetries: defaultMaxRetries,
	}

	if cfg.APIKey != "" {
		clientConfig.APIKey = cfg.APIKey
	} else if cfg.Username != "" && cfg.Password != "" {
		clientConfig.Username = cfg.Username
		clientConfig.Password = cfg.Password
	}

	client, err := es.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	return client, nil
}

// Ping verifies the connection to Elasticsearch.
func Ping(ctx context.Context, client *es.Client) error {
	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to connect to elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error response from elasticsearch: %s", res.String())
	}

	return nil
}
