// Package graph implements the memory store on top of a Neo4j graph
// database. Users are nodes, memories are nodes owned through a
// HAS_MEMORY relationship, and retrieval orders by insertion time.
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/prepchat/prepchat/internal/models"
)

// Store provides access to the memory graph.
type Store struct {
	driver neo4j.DriverWithContext
}

// New connects to the graph database at the given bolt URI and verifies
// connectivity before returning.
func New(ctx context.Context, uri, user, password string) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	return &Store{driver: driver}, nil
}

// Close releases the underlying driver and its connection pool.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// InitSchema creates the uniqueness constraint and index the store relies
// on. Safe to call on every startup.
func (s *Store) InitSchema(ctx context.Context) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	queries := []string{
		`CREATE CONSTRAINT user_id_unique IF NOT EXISTS FOR (u:User) REQUIRE u.user_id IS UNIQUE`,
		`CREATE INDEX user_username IF NOT EXISTS FOR (u:User) ON (u.username)`,
	}
	for _, q := range queries {
		if _, err := session.Run(ctx, q, nil); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// EnsureUser creates the user node if it does not exist and refreshes its
// username.
func (s *Store) EnsureUser(ctx context.Context, userID, username string) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MERGE (u:User {user_id: $user_id})
		SET u.username = $username
		RETURN u`
	result, err := session.Run(ctx, query, map[string]any{
		"user_id":  userID,
		"username": username,
	})
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	if _, err := result.Consume(ctx); err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	return nil
}

// Append creates a memory node owned by the given user. The store assigns
// created_at at insert time; memories are immutable once written.
func (s *Store) Append(ctx context.Context, userID string, m models.Memory) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MATCH (u:User {user_id: $user_id})
		CREATE (m:Memory {
			memory_id: $memory_id,
			text: $text,
			kind: $kind,
			confidence: $confidence,
			source: $source,
			created_at: datetime()
		})
		CREATE (u)-[:HAS_MEMORY]->(m)
		RETURN m`
	result, err := session.Run(ctx, query, map[string]any{
		"user_id":    userID,
		"memory_id":  m.ID,
		"text":       m.Text,
		"kind":       string(m.Kind),
		"confidence": m.Confidence,
		"source":     m.Source,
	})
	if err != nil {
		return fmt.Errorf("append memory: %w", err)
	}
	if _, err := result.Consume(ctx); err != nil {
		return fmt.Errorf("append memory: %w", err)
	}
	return nil
}

// Recent returns up to limit memories for the user, newest first.
func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]models.Memory, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (u:User {user_id: $user_id})-[:HAS_MEMORY]->(m:Memory)
		RETURN m.memory_id AS memory_id, m.text AS text, m.kind AS kind,
		       m.confidence AS confidence, m.source AS source, m.created_at AS created_at
		ORDER BY m.created_at DESC
		LIMIT $limit`
	result, err := session.Run(ctx, query, map[string]any{
		"user_id": userID,
		"limit":   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("recent memories: %w", err)
	}

	var memories []models.Memory
	for result.Next(ctx) {
		record := result.Record()
		memories = append(memories, models.Memory{
			ID:         stringValue(record, "memory_id"),
			Text:       stringValue(record, "text"),
			Kind:       models.Kind(stringValue(record, "kind")),
			Confidence: floatValue(record, "confidence"),
			Source:     stringValue(record, "source"),
			CreatedAt:  timeValue(record, "created_at"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("recent memories: %w", err)
	}
	return memories, nil
}

func stringValue(record *neo4j.Record, key string) string {
	if v, ok := record.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func floatValue(record *neo4j.Record, key string) float64 {
	if v, ok := record.Get(key); ok {
		switch n := v.(type) {
		case float64:
			return n
		case int64:
			return float64(n)
		}
	}
	return 0
}

func timeValue(record *neo4j.Record, key string) time.Time {
	if v, ok := record.Get(key); ok {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}
	return time.Time{}
}
