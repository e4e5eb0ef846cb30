package workflow

import (
	"context"

	"reelgen/internal/stage"
)

// StageHealth runs each registered handler's readiness probe in pipeline
// order.
func (m *Manager) StageHealth(ctx context.Context) []stage.Health {
	health := make([]stage.Health, 0, len(m.stages))
	for _, stg := range m.stages {
		if stg.handler == nil {
			continue
		}
		health = append(health, stg.handler.HealthCheck(ctx))
	}
	return health
}
