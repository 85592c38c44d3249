package agents

import (
	"context"

	"StockSage/internal/domain/models"
)

// Agent is one concurrent analysis task. Analyze returns the agent's
// fragment; report publishes an optional in-progress message to the
// caller's stream. Agents never see the shared result, they only
// produce fragments.
type Agent interface {
	Name() models.AgentName
	Analyze(ctx context.Context, symbol string, report func(message string)) (*models.Fragment, error)
}
