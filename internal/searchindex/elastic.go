package searchindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"

	"github.com/tphakala/challenge-migration/internal/conf"
	"github.com/tphakala/challenge-migration/internal/errors"
	"github.com/tphakala/challenge-migration/internal/logger"
)

// Config configures the Elasticsearch client.
type Config struct {
	Addresses []string
	Username  string
	Password  string

	// ChallengeIndex and ChallengeType are searched by ExistingByLegacyIDs
	ChallengeIndex string
	ChallengeType  string

	// Refresh is passed to write requests when set
	Refresh string

	// Transport overrides the HTTP transport
	Transport http.RoundTripper
}

// ConfigFromSettings maps search settings to a client config.
func ConfigFromSettings(s conf.SearchSettings) Config {
	return Config{
		Addresses:      s.Addresses,
		Username:       s.Username,
		Password:       s.Password,
		ChallengeIndex: s.ChallengeIndex,
		ChallengeType:  s.ChallengeType,
		Refresh:        s.Refresh,
	}
}

// Elastic is an Index backed by Elasticsearch 7.
type Elastic struct {
	es  *elasticsearch.Client
	cfg Config
	log logger.Logger
}

// NewElastic creates a client. No request is made until first use.
func NewElastic(cfg Config, log logger.Logger) (*Elastic, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, errors.New(err).
			Component("search").
			Category(errors.CategoryConfiguration).
			Context("operation", "new-client").
			Build()
	}
	return &Elastic{es: es, cfg: cfg, log: log}, nil
}

// Create indexes a new document. An existing id is a conflict error.
func (e *Elastic) Create(ctx context.Context, index, docType, id string, body map[string]any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return indexError(err, "create", index, id)
	}
	req := esapi.CreateRequest{
		Index:        index,
		DocumentType: docType,
		DocumentID:   id,
		Body:         bytes.NewReader(payload),
		Refresh:      e.cfg.Refresh,
	}
	return e.do(ctx, req, "create", index, id, nil)
}

// Update applies a partial document. With upsert the document is created
// when missing.
func (e *Elastic) Update(ctx context.Context, index, docType, id string, doc map[string]any, upsert bool) error {
	payload, err := json.Marshal(map[string]any{"doc": doc, "doc_as_upsert": upsert})
	if err != nil {
		return indexError(err, "update", index, id)
	}
	req := esapi.UpdateRequest{
		Index:        index,
		DocumentType: docType,
		DocumentID:   id,
		Body:         bytes.NewReader(payload),
		Refresh:      e.cfg.Refresh,
	}
	return e.do(ctx, req, "update", index, id, nil)
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string          `json:"_id"`
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs a query and returns the hits.
func (e *Elastic) Search(ctx context.Context, index, docType string, query map[string]any) ([]Hit, error) {
	payload, err := json.Marshal(query)
	if err != nil {
		return nil, indexError(err, "search", index, "")
	}
	req := esapi.SearchRequest{
		Index: []string{index},
		Body:  bytes.NewReader(payload),
	}
	if docType != "" {
		req.DocumentType = []string{docType}
	}

	var resp searchResponse
	if err := e.do(ctx, req, "search", index, "", &resp); err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		hits = append(hits, Hit{ID: h.ID, Source: h.Source})
	}
	return hits, nil
}

// ExistingByLegacyIDs implements Index.
func (e *Elastic) ExistingByLegacyIDs(ctx context.Context, ids []int64) ([]Existing, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	hits, err := e.Search(ctx, e.cfg.ChallengeIndex, e.cfg.ChallengeType, existingQuery(ids))
	if err != nil {
		return nil, err
	}
	return decodeExisting(hits)
}

func (e *Elastic) do(ctx context.Context, req esapi.Request, op, index, id string, out any) error {
	start := time.Now()
	res, err := req.Do(ctx, e.es)
	if err != nil {
		return errors.New(err).
			Component("search").
			Category(errors.CategorySearchIndex).
			Context("operation", op).
			Context("index", index).
			Timing(op, time.Since(start)).
			Build()
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return errors.Newf("%s %s/%s: status %d: %s", op, index, id, res.StatusCode, bytes.TrimSpace(body)).
			Component("search").
			Category(errors.CategorySearchIndex).
			Context("operation", op).
			Context("index", index).
			Context("status", res.StatusCode).
			Build()
	}

	e.log.Trace("search index request",
		logger.String("operation", op),
		logger.String("index", index),
		logger.String("id", id),
		logger.Duration("elapsed", time.Since(start)))

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return indexError(fmt.Errorf("decode %s response: %w", op, err), op, index, id)
	}
	return nil
}
