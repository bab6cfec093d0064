package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/energynexus/nexus-cli/internal/models"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement is the InfluxDB measurement readings are written to
const Measurement = "building_energy"

// InfluxConfig addresses an InfluxDB v2 bucket
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// Influx writes readings as points, one blocking write per reading
type Influx struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	config   InfluxConfig
}

// NewInflux creates the client and verifies the server is healthy
func NewInflux(ctx context.Context, cfg InfluxConfig) (*Influx, error) {
	if cfg.URL == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("influx url and bucket are required")
	}

	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	if _, err := client.Health(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}

	return &Influx{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		config:   cfg,
	}, nil
}

func (s *Influx) Name() string {
	return "influx"
}

// WriteReading writes one point tagged by weekday and holiday
func (s *Influx) WriteReading(ctx context.Context, r models.Reading) error {
	if err := s.writeAPI.WritePoint(ctx, readingPoint(r)); err != nil {
		return fmt.Errorf("failed to write point: %w", err)
	}
	return nil
}

func readingPoint(r models.Reading) *write.Point {
	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return write.NewPoint(
		Measurement,
		map[string]string{
			"day_of_week": r.DayOfWeek,
			"holiday":     models.YesNo(r.Holiday),
		},
		map[string]interface{}{
			"reading_id":         r.ID,
			"temperature":        r.Temperature,
			"humidity":           r.Humidity,
			"square_footage":     r.SquareFootage,
			"occupancy":          r.Occupancy,
			"hvac_on":            r.HVACOn,
			"lighting_on":        r.LightingOn,
			"renewable_energy":   r.RenewableEnergy,
			"energy_consumption": r.EnergyConsumption,
		},
		ts,
	)
}

func (s *Influx) Close() error {
	s.client.Close()
	return nil
}
