// Package simulator drives a running fieldwatch server with synthetic
// sensor readings over its HTTP API.
package simulator

import (
	"context"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/sarawakflora/fieldwatch/internal/errors"
	"github.com/sarawakflora/fieldwatch/internal/logger"
	"github.com/sarawakflora/fieldwatch/internal/pipeline"
)

// GetLogger returns the simulator module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("simulator")
}

// Ack is the server's answer to one posted reading.
type Ack struct {
	Message        string `json:"message"`
	ID             uint   `json:"id"`
	AlertsOpened   int    `json:"alerts_opened"`
	AlertsResolved int    `json:"alerts_resolved"`
	Evaluated      bool   `json:"evaluated"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Client posts readings to the sensor-data endpoint.
type Client struct {
	rest *resty.Client
}

// NewClient creates a client for the API rooted at baseURL, including any
// base path.
func NewClient(baseURL string, timeout time.Duration) *Client {
	rest := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == http.StatusServiceUnavailable
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "fieldwatch-simulator")
	return &Client{rest: rest}
}

// HTTPClient exposes the underlying client for transport overrides.
func (c *Client) HTTPClient() *http.Client {
	return c.rest.GetClient()
}

// Send posts one reading.
func (c *Client) Send(ctx context.Context, p *pipeline.Payload) (*Ack, error) {
	var (
		ack     Ack
		failure errorBody
	)
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(p).
		SetResult(&ack).
		SetError(&failure).
		Post("/sensor-data")
	if err != nil {
		return nil, errors.New(err).
			Component("simulator").
			Category(errors.CategoryNetwork).
			Context("device_id", p.DeviceID).
			Build()
	}
	if resp.IsError() {
		msg := failure.Error
		if msg == "" {
			msg = resp.Status()
		}
		return nil, errors.Newf("sensor data rejected with status %d: %s", resp.StatusCode(), msg).
			Component("simulator").
			Category(errors.CategoryHTTP).
			Context("device_id", p.DeviceID).
			Context("status", resp.StatusCode()).
			Context("type", failure.Type).
			Build()
	}
	return &ack, nil
}

// Config controls a simulation run.
type Config struct {
	Devices []string
	// Rounds is the number of readings per device; zero runs until ctx is done.
	Rounds   int
	Interval time.Duration
	// BreachRate is the probability that a reading falls outside the
	// default safe bands.
	BreachRate float64
	Seed       uint64
}

// Summary counts what a run produced.
type Summary struct {
	Sent           int
	Failed         int
	AlertsOpened   int
	AlertsResolved int
}

// Generator produces plausible readings for Bornean lowland forest.
type Generator struct {
	rng        *rand.Rand
	breachRate float64
}

// NewGenerator creates a deterministic generator for seed.
func NewGenerator(seed uint64, breachRate float64) *Generator {
	return &Generator{
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		breachRate: breachRate,
	}
}

// Next returns a reading for deviceID.
func (g *Generator) Next(deviceID string) *pipeline.Payload {
	temp := round1(24 + g.rng.Float64()*8)
	humidity := round1(65 + g.rng.Float64()*25)
	soil := round1(30 + g.rng.Float64()*30)
	motion := false

	if g.rng.Float64() < g.breachRate {
		switch g.rng.IntN(4) {
		case 0:
			temp = round1(36 + g.rng.Float64()*4)
		case 1:
			humidity = round1(96 + g.rng.Float64()*4)
		case 2:
			soil = round1(5 + g.rng.Float64()*10)
		default:
			motion = true
		}
	}

	return &pipeline.Payload{
		DeviceID:       deviceID,
		Temperature:    &temp,
		Humidity:       &humidity,
		SoilMoisture:   &soil,
		MotionDetected: pipeline.Flag(motion),
	}
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

// Run posts generated readings for every device once per interval until
// the configured rounds are done or ctx ends. Rejected readings are
// counted and logged, not fatal.
func Run(ctx context.Context, c *Client, cfg Config) (Summary, error) {
	var sum Summary
	if len(cfg.Devices) == 0 {
		return sum, errors.NewStd("no devices to simulate")
	}
	gen := NewGenerator(cfg.Seed, cfg.BreachRate)
	log := GetLogger()

	// one round per interval, the first one immediately
	pace := rate.NewLimiter(rate.Every(max(cfg.Interval, time.Millisecond)), 1)

	for round := 0; cfg.Rounds == 0 || round < cfg.Rounds; round++ {
		if err := pace.Wait(ctx); err != nil {
			return sum, nil
		}
		for _, id := range cfg.Devices {
			if ctx.Err() != nil {
				return sum, nil
			}
			ack, err := c.Send(ctx, gen.Next(id))
			if err != nil {
				sum.Failed++
				log.Warn("reading rejected", logger.String("device_id", id), logger.Error(err))
				continue
			}
			sum.Sent++
			sum.AlertsOpened += ack.AlertsOpened
			sum.AlertsResolved += ack.AlertsResolved
			log.Debug("reading sent",
				logger.String("device_id", id),
				logger.Uint64("reading_id", uint64(ack.ID)),
				logger.Int("alerts_opened", ack.AlertsOpened))
		}
	}
	return sum, nil
}
