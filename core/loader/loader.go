package loader

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Feature is implemented by each application feature. The manager loads
// every registered feature that reports itself enabled.
type Feature interface {
	// Name returns the feature's name, used for logging.
	Name() string
	// IsEnabled checks if the feature is enabled.
	IsEnabled() bool
	// Load registers the feature's routes.
	Load(app fiber.Router) error
}

// Manager holds the registry of available features.
type Manager struct {
	features []Feature
	log      *zap.Logger
}

// NewManager creates an empty feature manager.
func NewManager(log *zap.Logger) *Manager {
	return &Manager{log: log}
}

// Register adds a feature to the registry.
func (m *Manager) Register(feature Feature) {
	m.features = append(m.features, feature)
}

// LoadAll loads every enabled feature onto the given router.
func (m *Manager) LoadAll(app fiber.Router) error {
	for _, feature := range m.features {
		if !feature.IsEnabled() {
			m.log.Info("Feature disabled, skipping", zap.String("feature", feature.Name()))
			continue
		}

		if err := feature.Load(app); err != nil {
			return fmt.Errorf("failed to load feature %s: %w", feature.Name(), err)
		}
		m.log.Info("Feature loaded", zap.String("feature", feature.Name()))
	}
	return nil
}
