package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/google/uuid"

	"github.com/MalasadaTech/masq-monitor/internal/logger"
	"github.com/MalasadaTech/masq-monitor/internal/record"
	"github.com/MalasadaTech/masq-monitor/internal/report"
)

// ResultStore indexes run records.
type ResultStore struct {
	client *es.Client
	index  string
	log    logger.Interface
}

// NewResultStore creates a result store writing to the named index.
func NewResultStore(client *es.Client, index string, log logger.Interface) *ResultStore {
	if log == nil {
		log = logger.NewNoOp()
	}
	return &ResultStore{
		client: client,
		index:  index,
		log:    log,
	}
}

// ResultDocument is the indexed form of one scan record.
type ResultDocument struct {
	QueryName   string         `json:"query_name"`
	Platform    string         `json:"platform"`
	DataType    string         `json:"data_type"`
	TLPLevel    string         `json:"tlp_level"`
	RunDir      string         `json:"run_dir"`
	GeneratedAt time.Time      `json:"generated_at"`
	Fields      map[string]any `json:"fields"`
}

// StoreRun bulk-indexes every record from a completed run.
func (s *ResultStore) StoreRun(ctx context.Context, rep *report.Report, runDir string) error {
	if len(rep.Records) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, rec := range rep.Records {
		doc := ResultDocument{
			QueryName:   rep.Name,
			Platform:    rep.Platform,
			DataType:    dataType(rec),
			TLPLevel:    string(rep.TLPLevel),
			RunDir:      filepath.Base(runDir),
			GeneratedAt: rep.GeneratedAt,
			Fields:      rec.Fields,
		}

		meta := map[string]any{
			"index": map[string]any{
				"_index": s.index,
				"_id":    documentID(rec),
			},
		}

		if err := json.NewEncoder(&buf).Encode(meta); err != nil {
			return fmt.Errorf("failed to encode bulk meta: %w", err)
		}
		if err := json.NewEncoder(&buf).Encode(doc); err != nil {
			return fmt.Errorf("failed to encode record document: %w", err)
		}
	}

	res, err := s.client.Bulk(
		bytes.NewReader(buf.Bytes()),
		s.client.Bulk.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("bulk request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("bulk indexing error: %s", res.String())
	}

	s.log.Info("Indexed run records",
		"index", s.index,
		"query", rep.Name,
		"count", len(rep.Records))

	return nil
}

// documentID prefers the urlscan task UUID so re-indexing a cached run
// overwrites instead of duplicating.
func documentID(rec record.Record) string {
	if task, ok := rec.Fields["task"].(map[string]any); ok {
		if id, ok := task["uuid"].(string); ok && id != "" {
			return id
		}
	}
	return uuid.NewString()
}

func dataType(rec record.Record) string {
	if rec.Type == "" {
		return "urlscan"
	}
	return string(rec.Type)
}
