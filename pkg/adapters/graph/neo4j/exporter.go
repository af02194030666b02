// Package neo4j exports completed cells into a Neo4j working-memory graph.
package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/sgttomas/chirality-semantic-framework/internal/domain"
	"github.com/sgttomas/chirality-semantic-framework/internal/matrices"
	"github.com/sgttomas/chirality-semantic-framework/internal/ports"
	"github.com/sgttomas/chirality-semantic-framework/pkg/adapters/graph"
)

// Config holds connection configuration.
type Config struct {
	URI      string
	User     string
	Password string
	Metrics  ports.MetricsCollector
}

// Exporter writes the full journey of each cell computation to Neo4j:
// a Matrix node, a Cell node linked to it, and one Stage node per pipeline
// stage. Every write is a MERGE keyed on stable identity, so re-exporting a
// cell leaves the graph unchanged.
type Exporter struct {
	driver  neo4j.DriverWithContext
	metrics ports.MetricsCollector
	logger  *zap.Logger
}

// New connects to Neo4j and ensures the uniqueness constraints exist.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Exporter, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to neo4j: %w", err)
	}

	e := &Exporter{driver: driver, metrics: cfg.Metrics, logger: logger}
	if err := e.ensureSchema(ctx); err != nil {
		driver.Close(ctx)
		return nil, err
	}

	logger.Info("neo4j exporter connected", zap.String("uri", cfg.URI))
	return e, nil
}

func (e *Exporter) ensureSchema(ctx context.Context) error {
	session := e.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	constraints := []string{
		"CREATE CONSTRAINT IF NOT EXISTS FOR (m:Matrix) REQUIRE m.name IS UNIQUE",
		"CREATE CONSTRAINT IF NOT EXISTS FOR (c:Cell) REQUIRE c.id IS UNIQUE",
		"CREATE CONSTRAINT IF NOT EXISTS FOR (s:Stage) REQUIRE s.id IS UNIQUE",
	}
	for _, stmt := range constraints {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// ExportCell persists one cell and its provenance chain in a single write
// transaction.
func (e *Exporter) ExportCell(ctx context.Context, cell domain.Cell, coords domain.Coordinates) error {
	if err := graph.ValidateCell(cell, coords); err != nil {
		if e.metrics != nil {
			e.metrics.RecordExport("rejected")
		}
		return err
	}

	cellID := graph.CellID(coords)
	session := e.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx,
			"MERGE (m:Matrix {name: $matrix_name}) SET m.station = $station",
			map[string]any{
				"matrix_name": coords.Matrix,
				"station":     matrices.StationFor(coords.Matrix),
			}); err != nil {
			return nil, err
		}

		if _, err := tx.Run(ctx, `
			MATCH (m:Matrix {name: $matrix_name})
			MERGE (c:Cell {id: $cell_id})
			SET c.row = $row,
			    c.col = $col,
			    c.value = $value,
			    c.row_label = $row_label,
			    c.col_label = $col_label
			MERGE (m)-[:CONTAINS]->(c)`,
			map[string]any{
				"matrix_name": coords.Matrix,
				"cell_id":     cellID,
				"row":         cell.Row,
				"col":         cell.Col,
				"value":       cell.Value,
				"row_label":   coords.RowLabel,
				"col_label":   coords.ColLabel,
			}); err != nil {
			return nil, err
		}

		for _, stage := range cell.Provenance.Stages {
			query := fmt.Sprintf(`
				MATCH (c:Cell {id: $cell_id})
				MERGE (s:Stage:%s {id: $stage_id})
				SET s += $props
				MERGE (c)-[:HAS_STAGE]->(s)`, graph.StageLabel(stage.Kind))
			if _, err := tx.Run(ctx, query, map[string]any{
				"cell_id":  cellID,
				"stage_id": graph.StageID(coords, stage.Kind),
				"props":    graph.StagePayload(stage),
			}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		if e.metrics != nil {
			e.metrics.RecordExport("failed")
		}
		return &domain.ExportError{Err: fmt.Errorf("failed to export cell %s: %w", cellID, err)}
	}

	if e.metrics != nil {
		e.metrics.RecordExport("ok")
	}
	e.logger.Debug("cell exported",
		zap.String("cell_id", cellID),
		zap.Int("stages", len(cell.Provenance.Stages)))
	return nil
}

// Close closes the driver connection.
func (e *Exporter) Close(ctx context.Context) error {
	return e.driver.Close(ctx)
}
