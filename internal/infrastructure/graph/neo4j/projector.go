package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kirillkom/coaching-kb/internal/core/domain"
)

const (
	clearItemsQuery = `
MERGE (d:Document {id: $document_id})
SET d.filename = $filename, d.created_at = $created_at
WITH d
OPTIONAL MATCH (d)-[:HAS_ITEM]->(old:KnowledgeItem)
DETACH DELETE old`

	createItemsQuery = `
MATCH (d:Document {id: $document_id})
UNWIND $items AS item
CREATE (i:KnowledgeItem {id: item.id, type: item.type, text: item.text, tier: item.tier, segment: item.segment})
MERGE (d)-[:HAS_ITEM]->(i)
MERGE (t:ItemType {name: item.type})
MERGE (i)-[:OF_TYPE]->(t)`
)

type runner func(ctx context.Context, cypher string, params map[string]any) error

// Projector mirrors analysis items into a Neo4j graph:
// (:Document)-[:HAS_ITEM]->(:KnowledgeItem)-[:OF_TYPE]->(:ItemType).
type Projector struct {
	driver neo4j.DriverWithContext
	run    runner
}

func New(ctx context.Context, uri, username, password, database string) (*Projector, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, domain.WrapError(domain.ErrServiceUnavailable, "neo4j connect", err)
	}

	opts := []neo4j.ExecuteQueryConfigurationOption{}
	if database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(database))
	}
	return &Projector{
		driver: driver,
		run: func(ctx context.Context, cypher string, params map[string]any) error {
			_, err := neo4j.ExecuteQuery(ctx, driver, cypher, params, neo4j.EagerResultTransformer, opts...)
			return err
		},
	}, nil
}

func (p *Projector) Close(ctx context.Context) error {
	if p.driver == nil {
		return nil
	}
	return p.driver.Close(ctx)
}

// Project replaces the document's item subgraph with the given analysis.
func (p *Projector) Project(ctx context.Context, doc domain.Document, result domain.AnalysisResult, tiers map[string]domain.PriorityTier) error {
	if err := p.run(ctx, clearItemsQuery, map[string]any{
		"document_id": doc.ID,
		"filename":    doc.Filename,
		"created_at":  doc.CreatedAt.UTC().Format(time.RFC3339),
	}); err != nil {
		return fmt.Errorf("neo4j clear items: %w", err)
	}

	items := itemParams(result, tiers)
	if len(items) == 0 {
		return nil
	}
	if err := p.run(ctx, createItemsQuery, map[string]any{
		"document_id": doc.ID,
		"items":       items,
	}); err != nil {
		return fmt.Errorf("neo4j create items: %w", err)
	}
	return nil
}

func itemParams(result domain.AnalysisResult, tiers map[string]domain.PriorityTier) []map[string]any {
	items := result.Items()
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		tier, ok := tiers[item.ID]
		if !ok {
			tier = domain.TierStandard
		}
		out = append(out, map[string]any{
			"id":      item.ID,
			"type":    string(item.Type),
			"text":    item.Text,
			"tier":    string(tier),
			"segment": int64(item.SourceSegment),
		})
	}
	return out
}
