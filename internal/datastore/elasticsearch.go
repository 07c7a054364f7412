package datastore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"ai-list-filter/internal/common/errors"
	"ai-list-filter/internal/models"
)

// ElasticsearchSearcher answers location and post name searches from the
// search indices kept in sync with the datastore.
type ElasticsearchSearcher struct {
	client         *elasticsearch.Client
	locationsIndex string
	postsIndex     string
	size           int
}

func NewElasticsearchSearcher(client *elasticsearch.Client, locationsIndex, postsIndex string, size int) *ElasticsearchSearcher {
	if size <= 0 {
		size = defaultSearchLimit
	}
	return &ElasticsearchSearcher{
		client:         client,
		locationsIndex: locationsIndex,
		postsIndex:     postsIndex,
		size:           size,
	}
}

type searchHit struct {
	ID     string          `json:"_id"`
	Source json.RawMessage `json:"_source"`
}

type searchResponse struct {
	Hits struct {
		Hits []searchHit `json:"hits"`
	} `json:"hits"`
}

func (s *ElasticsearchSearcher) SearchLocations(ctx context.Context, query string) ([]models.Option, error) {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"match": map[string]interface{}{
				"name": map[string]interface{}{"query": query, "operator": "and"},
			},
		},
		"sort": []interface{}{"_score", map[string]interface{}{"grid_id": "asc"}},
	}

	hits, err := s.search(ctx, s.locationsIndex, body)
	if err != nil {
		return nil, err
	}

	out := make([]models.Option, 0, len(hits))
	for _, h := range hits {
		var src struct {
			GridID   models.ID `json:"grid_id"`
			Name     string    `json:"name"`
			FullName string    `json:"full_name"`
		}
		if err := json.Unmarshal(h.Source, &src); err != nil {
			return nil, errors.NewSearchQueryFailedError("search_locations", err)
		}
		label := src.FullName
		if label == "" {
			label = src.Name
		}
		out = append(out, models.Option{ID: src.GridID, Label: label})
	}
	return out, nil
}

func (s *ElasticsearchSearcher) SearchPosts(ctx context.Context, query, postType string) ([]models.Option, error) {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{"match": map[string]interface{}{
						"title": map[string]interface{}{"query": query, "operator": "and"},
					}},
				},
				"filter": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"post_type": postType}},
				},
				"must_not": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"status": "closed"}},
				},
			},
		},
		"sort": []interface{}{map[string]interface{}{"last_modified": "desc"}},
	}

	hits, err := s.search(ctx, s.postsIndex, body)
	if err != nil {
		return nil, err
	}

	out := make([]models.Option, 0, len(hits))
	for _, h := range hits {
		var src struct {
			ID    models.ID `json:"id"`
			Title string    `json:"title"`
		}
		if err := json.Unmarshal(h.Source, &src); err != nil {
			return nil, errors.NewSearchQueryFailedError("search_posts", err)
		}
		if src.ID == "" {
			src.ID = models.ID(h.ID)
		}
		out = append(out, models.Option{ID: src.ID, Label: src.Title})
	}
	return out, nil
}

func (s *ElasticsearchSearcher) search(ctx context.Context, index string, body map[string]interface{}) ([]searchHit, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.NewSearchQueryFailedError(index, err)
	}

	size := s.size
	req := esapi.SearchRequest{
		Index: []string{index},
		Body:  bytes.NewReader(payload),
		Size:  &size,
	}

	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, errors.NewElasticsearchConnectionFailedError(err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, errors.NewIndexNotFoundError(index)
	}
	if res.IsError() {
		return nil, errors.NewSearchQueryFailedError(index, fmt.Errorf("%s", res.Status()))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, errors.NewSearchQueryFailedError(index, err)
	}
	return parsed.Hits.Hits, nil
}
