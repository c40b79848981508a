// Package audit indexes auth events into Elasticsearch and reads them back
// as a per-user activity feed.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/Skotchmaster/auth_service/internal/events"
)

type Config struct {
	URL      string
	User     string
	Password string
	Index    string

	// Transport replaces the HTTP transport, used by tests.
	Transport http.RoundTripper
}

func NewClient(ctx context.Context, cfg Config) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.User,
		Password:  cfg.Password,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}

	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch info: %s: %s", res.Status(), body)
	}
	return client, nil
}

type Indexer struct {
	es    *elasticsearch.Client
	index string
}

func NewIndexer(es *elasticsearch.Client, index string) *Indexer {
	return &Indexer{es: es, index: index}
}

const mapping = `{
  "mappings": {
    "properties": {
      "id":        {"type": "keyword"},
      "type":      {"type": "keyword"},
      "userId":    {"type": "keyword"},
      "email":     {"type": "keyword"},
      "ip":        {"type": "keyword"},
      "userAgent": {"type": "text"},
      "at":        {"type": "date"},
      "meta":      {"type": "object", "enabled": false}
    }
  }
}`

// EnsureIndex creates the index with keyword mappings if it does not exist.
func (i *Indexer) EnsureIndex(ctx context.Context) error {
	res, err := i.es.Indices.Exists([]string{i.index}, i.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("index exists: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = i.es.Indices.Create(i.index,
		i.es.Indices.Create.WithContext(ctx),
		i.es.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		return fmt.Errorf("index create: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusBadRequest {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("index create: %s: %s", res.Status(), body)
	}
	return nil
}

// Publish indexes the event under its own id, so retries overwrite instead of duplicating.
func (i *Indexer) Publish(ctx context.Context, ev events.Event) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(ev); err != nil {
		return fmt.Errorf("audit encode: %w", err)
	}

	res, err := i.es.Index(i.index, &buf,
		i.es.Index.WithContext(ctx),
		i.es.Index.WithDocumentID(ev.ID),
	)
	if err != nil {
		return fmt.Errorf("audit index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("audit index: %s: %s", res.Status(), body)
	}
	return nil
}

// Activity returns the user's events, newest first.
func (i *Indexer) Activity(ctx context.Context, userID string, from, size int) (int64, []events.Event, error) {
	body := map[string]any{
		"query": map[string]any{
			"term": map[string]any{"userId": userID},
		},
		"sort": []any{
			map[string]any{"at": map[string]any{"order": "desc"}},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("activity encode: %w", err)
	}

	res, err := i.es.Search(
		i.es.Search.WithContext(ctx),
		i.es.Search.WithIndex(i.index),
		i.es.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("activity search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		return 0, nil, fmt.Errorf("activity search: %s: %s", res.Status(), raw)
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source events.Event `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, fmt.Errorf("activity decode: %w", err)
	}

	out := make([]events.Event, len(r.Hits.Hits))
	for n, hit := range r.Hits.Hits {
		out[n] = hit.Source
	}
	return r.Hits.Total.Value, out, nil
}

func (i *Indexer) Ping(ctx context.Context) error {
	res, err := i.es.Ping(i.es.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: %s", res.Status())
	}
	return nil
}
