package generator

import (
	"math/rand"

	"github.com/energynexus/nexus-cli/internal/models"
	"github.com/energynexus/nexus-cli/internal/scenario"
)

// Generator produces building readings from a scenario
type Generator struct {
	engine  *scenario.Engine
	rng     *rand.Rand
	signals map[string]SignalGenerator
}

// Config holds generator configuration
type Config struct {
	Seed int64
}

// NewGenerator creates a new reading generator
func NewGenerator(engine *scenario.Engine, config Config) *Generator {
	return &Generator{
		engine:  engine,
		rng:     rand.New(rand.NewSource(config.Seed)),
		signals: GetAllSignals(),
	}
}

// Next generates the reading at the engine's current time and advances it
func (g *Generator) Next() models.Reading {
	t := g.engine.Advance()
	ctx := NewCorrelationContext()
	forced := make(map[string]bool)

	for _, name := range signalOrder {
		config := g.engine.GetSignalConfig(name, t)
		if config == nil {
			config = &scenario.SignalConfig{}
		}
		if config.Value != "" {
			forced[name] = true
		}
		ctx.Set(name, g.signals[name](g.rng, config, t))
	}
	ctx.ApplyCorrelations(forced)

	return models.Reading{
		Timestamp:         t,
		Temperature:       ctx.floatValue(scenario.SignalTemperature),
		Humidity:          ctx.floatValue(scenario.SignalHumidity),
		SquareFootage:     ctx.floatValue(scenario.SignalSquareFootage),
		Occupancy:         int(ctx.floatValue(scenario.SignalOccupancy)),
		HVACOn:            ctx.boolValue(scenario.SignalHVAC),
		LightingOn:        ctx.boolValue(scenario.SignalLighting),
		RenewableEnergy:   ctx.floatValue(scenario.SignalRenewable),
		DayOfWeek:         t.Weekday().String(),
		Holiday:           g.engine.GetScenario().IsHoliday(t),
		EnergyConsumption: ctx.floatValue(scenario.SignalEnergy),
	}
}

// GenerateN produces n consecutive readings
func (g *Generator) GenerateN(n int) []models.Reading {
	readings := make([]models.Reading, 0, n)
	for i := 0; i < n; i++ {
		readings = append(readings, g.Next())
	}
	return readings
}
