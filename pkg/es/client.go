// Package es 提供了与 Elasticsearch 交互的客户端功能。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"healthtrack-go/internal/config"
	"healthtrack-go/internal/model"
	"healthtrack-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var ESClient *elasticsearch.Client

// InitES 初始化 Elasticsearch 客户端
func InitES(esCfg config.ElasticsearchConfig) error {
	cfg := elasticsearch.Config{
		Addresses: strings.Split(esCfg.Addresses, ","),
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return err
	}
	ESClient = client
	return createIndexIfNotExists(client, esCfg.IndexName)
}

const entryMapping = `{
	"mappings": {
		"properties": {
			"entry_id":   { "type": "keyword" },
			"user_id":    { "type": "keyword" },
			"symptoms":   { "type": "text", "fields": { "raw": { "type": "keyword" } } },
			"notes":      { "type": "text" },
			"risk_level": { "type": "keyword" },
			"created_at": { "type": "date" }
		}
	}
}`

// createIndexIfNotExists 检查索引是否存在，如果不存在则创建它
func createIndexIfNotExists(client *elasticsearch.Client, indexName string) error {
	res, err := client.Indices.Exists([]string{indexName})
	if err != nil {
		log.Errorf("检查索引是否存在时出错: %v", err)
		return err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	res, err = client.Indices.Create(indexName, client.Indices.Create.WithBody(strings.NewReader(entryMapping)))
	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", indexName, err)
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", indexName, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功", indexName)
	return nil
}

// EntryIndex 维护症状记录索引。
type EntryIndex struct {
	client *elasticsearch.Client
	index  string
}

// NewEntryIndex 创建一个新的 EntryIndex 实例。
func NewEntryIndex(client *elasticsearch.Client, index string) *EntryIndex {
	return &EntryIndex{client: client, index: index}
}

// IndexEntry 写入或覆盖一条症状记录文档，文档 ID 即记录 ID。
func (x *EntryIndex) IndexEntry(ctx context.Context, entry *model.SymptomEntry, assessment *model.RiskAssessment) error {
	docBytes, err := json.Marshal(model.NewEntryDocument(entry, assessment))
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      x.index,
		DocumentID: entry.ID,
		Body:       bytes.NewReader(docBytes),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, x.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("索引文档到 Elasticsearch 出错: %s", res.String())
		return errors.New("failed to index document")
	}
	return nil
}

// DeleteEntry 删除一条症状记录文档，文档不存在视为成功。
func (x *EntryIndex) DeleteEntry(ctx context.Context, entryID string) error {
	req := esapi.DeleteRequest{Index: x.index, DocumentID: entryID, Refresh: "true"}
	res, err := req.Do(ctx, x.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("failed to delete document: %s", res.String())
	}
	return nil
}

type searchHit struct {
	Score  float64             `json:"_score"`
	Source model.EntryDocument `json:"_source"`
}

type searchResponse struct {
	Hits struct {
		Hits []searchHit `json:"hits"`
	} `json:"hits"`
}

// Search 在 userID 自己的记录中做全文检索。
func (x *EntryIndex) Search(ctx context.Context, userID, query string, size int) ([]model.SearchResponseDTO, error) {
	body := map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"multi_match": map[string]interface{}{
						"query":     query,
						"fields":    []string{"symptoms^2", "notes"},
						"fuzziness": "AUTO",
					},
				},
				"filter": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"user_id": userID}},
				},
			},
		},
		"sort": []interface{}{"_score", map[string]interface{}{"created_at": "desc"}},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}

	res, err := x.client.Search(
		x.client.Search.WithContext(ctx),
		x.client.Search.WithIndex(x.index),
		x.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch search error: %s", res.String())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	results := make([]model.SearchResponseDTO, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		results = append(results, model.SearchResponseDTO{
			EntryID:   hit.Source.EntryID,
			Symptoms:  hit.Source.Symptoms,
			Notes:     hit.Source.Notes,
			RiskLevel: hit.Source.RiskLevel,
			CreatedAt: hit.Source.CreatedAt,
			Score:     hit.Score,
		})
	}
	return results, nil
}
