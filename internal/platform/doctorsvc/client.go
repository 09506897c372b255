// Package doctorsvc reads calendar facts from the doctor-service REST API.
// It implements calendar.Store so the booking core can run against either
// the local Postgres tables or the remote service.
package doctorsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/mediconnect/booking/internal/domain/calendar"
)

const maxResponseBytes = 1 << 20

var (
	// ErrUnavailable wraps transport failures, 5xx answers and an open breaker.
	ErrUnavailable = errors.New("doctor service unavailable")
	// errNotFound marks a 404 so the breaker does not count it as a failure.
	errNotFound = errors.New("not found")
)

type Config struct {
	BaseURL string
	// Timeout bounds each HTTP call, on top of any deadline in ctx.
	Timeout time.Duration
	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	// OnStateChange is told the new breaker state: 0 closed, 1 half-open, 2 open.
	OnStateChange func(name string, state int)
	HTTPClient    *http.Client
}

// Client is safe for concurrent use.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  zerolog.Logger
}

var _ calendar.Store = (*Client)(nil)

func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid doctor service url %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}

	logger = logger.With().Str("component", "doctorsvc").Logger()
	threshold := cfg.FailureThreshold
	onChange := cfg.OnStateChange

	settings := gobreaker.Settings{
		Name:        "doctor-service",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state changed")
			if onChange != nil {
				onChange(name, int(to))
			}
		},
	}

	return &Client{
		baseURL: base.String(),
		timeout: cfg.Timeout,
		http:    hc,
		breaker: gobreaker.NewCircuitBreaker[[]byte](settings),
		logger:  logger,
	}, nil
}

// State reports the breaker state.
func (c *Client) State() gobreaker.State { return c.breaker.State() }

func (c *Client) GetDoctor(ctx context.Context, doctorID uuid.UUID) (*calendar.Doctor, error) {
	var d doctorDTO
	if err := c.get(ctx, "/api/doctors/"+doctorID.String(), &d); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, calendar.ErrDoctorNotFound
		}
		return nil, err
	}
	return d.toDoctor(doctorID), nil
}

// GetWeeklyAvailability treats a 404 as "no rows", as do the override and
// leave lookups; doctor existence is checked through GetDoctor.
func (c *Client) GetWeeklyAvailability(ctx context.Context, doctorID uuid.UUID) ([]*calendar.WeeklyAvailability, error) {
	var rows []availabilityDTO
	if err := c.getList(ctx, "/doctors/availability/"+doctorID.String(), &rows); err != nil {
		return nil, err
	}
	out := make([]*calendar.WeeklyAvailability, 0, len(rows))
	for _, r := range rows {
		w, err := r.toWeekly(doctorID)
		if err != nil {
			return nil, fmt.Errorf("decode availability for doctor %s: %w", doctorID, err)
		}
		out = append(out, w)
	}
	return out, nil
}

func (c *Client) GetScheduleOverrides(ctx context.Context, doctorID uuid.UUID) ([]*calendar.ScheduleOverride, error) {
	var rows []scheduleDTO
	if err := c.getList(ctx, "/doctors/schedules/"+doctorID.String(), &rows); err != nil {
		return nil, err
	}
	out := make([]*calendar.ScheduleOverride, 0, len(rows))
	for _, r := range rows {
		o, err := r.toOverride(doctorID)
		if err != nil {
			return nil, fmt.Errorf("decode schedule for doctor %s: %w", doctorID, err)
		}
		out = append(out, o)
	}
	return out, nil
}

func (c *Client) GetLeavePeriods(ctx context.Context, doctorID uuid.UUID) ([]*calendar.LeavePeriod, error) {
	var rows []leaveDTO
	if err := c.getList(ctx, "/doctors/leaves/"+doctorID.String(), &rows); err != nil {
		return nil, err
	}
	out := make([]*calendar.LeavePeriod, 0, len(rows))
	for _, r := range rows {
		l, err := r.toLeave(doctorID)
		if err != nil {
			return nil, fmt.Errorf("decode leave for doctor %s: %w", doctorID, err)
		}
		out = append(out, l)
	}
	return out, nil
}

func (c *Client) getList(ctx context.Context, path string, into any) error {
	err := c.get(ctx, path, into)
	if errors.Is(err, errNotFound) {
		return nil
	}
	return err
}

// get fetches path through the breaker and decodes the envelope's data
// field into into.
func (c *Client) get(ctx context.Context, path string, into any) error {
	data, err := c.breaker.Execute(func() ([]byte, error) {
		return c.fetch(ctx, path)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	case err != nil:
		return err
	}
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, path string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", ErrUnavailable, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrUnavailable, path, err)
	}
	c.logger.Debug().Str("path", path).Int("status", resp.StatusCode).Dur("latency", time.Since(start)).
		Msg("doctor service call")

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("GET %s: %w", path, errNotFound)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: GET %s returned %d", ErrUnavailable, path, resp.StatusCode)
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("GET %s returned %d", path, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode envelope from %s: %w", path, err)
	}
	if !env.Success {
		return nil, fmt.Errorf("GET %s: doctor service reported failure: %s", path, env.Message)
	}
	return env.Data, nil
}
