// internal/repository/postgres/agent_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"syncbridge-service/internal/domain/agent"
	xerrors "syncbridge-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AgentRepository struct {
	db *pgxpool.Pool
}

func NewAgentRepository(db *pgxpool.Pool) *AgentRepository {
	return &AgentRepository{db: db}
}

const agentColumns = `
	id, livechat_agent_id, ringcentral_extension_id, email, name,
	created_at, updated_at
`

func (r *AgentRepository) scanAgent(row pgx.Row) (*agent.Agent, error) {
	var a agent.Agent
	err := row.Scan(
		&a.ID, &a.LiveChatAgentID, &a.RingCentralExtensionID, &a.Email, &a.Name,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan agent: %w", err)
	}
	return &a, nil
}

// FindByID retrieves an agent by internal ID.
func (r *AgentRepository) FindByID(ctx context.Context, id int64) (*agent.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE id = $1`
	return r.scanAgent(r.db.QueryRow(ctx, query, id))
}

// FindByLiveChatID retrieves an agent by LiveChat agent id.
func (r *AgentRepository) FindByLiveChatID(ctx context.Context, livechatID string) (*agent.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE livechat_agent_id = $1`
	return r.scanAgent(r.db.QueryRow(ctx, query, livechatID))
}

// FindByExtensionID retrieves an agent by RingCentral extension id.
func (r *AgentRepository) FindByExtensionID(ctx context.Context, extensionID string) (*agent.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE ringcentral_extension_id = $1`
	return r.scanAgent(r.db.QueryRow(ctx, query, extensionID))
}

// List retrieves all agents ordered by creation time.
func (r *AgentRepository) List(ctx context.Context) ([]agent.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents ORDER BY created_at`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	var agents []agent.Agent
	for rows.Next() {
		var a agent.Agent
		if err := rows.Scan(
			&a.ID, &a.LiveChatAgentID, &a.RingCentralExtensionID, &a.Email, &a.Name,
			&a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		agents = append(agents, a)
	}

	return agents, rows.Err()
}

// Count returns the total number of agents.
func (r *AgentRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM agents`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count agents: %w", err)
	}
	return n, nil
}
