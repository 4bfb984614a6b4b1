// Package nhtsa verifies vehicles against the NHTSA vPIC reference service.
//
// Each lookup runs under a Policy. A Critical lookup fails closed: when the
// service is unreachable the vehicle is rejected. An Advisory lookup fails
// open: the vehicle is accepted with a warning.
package nhtsa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultBaseURL is the public vPIC API root.
const DefaultBaseURL = "https://vpic.nhtsa.dot.gov/api/vehicles"

// Policy decides what a failed lookup means.
type Policy int

const (
	// Critical lookups reject the input when the service cannot answer.
	Critical Policy = iota + 1
	// Advisory lookups accept the input with a warning when the service cannot answer.
	Advisory
)

func (p Policy) String() string {
	if p == Advisory {
		return "advisory"
	}
	return "critical"
}

// Reason shown to the user when a critical lookup times out.
const ReasonTimeout = "Vehicle verification service timed out. Please try again."

// Verdict is the outcome of a verification call.
type Verdict struct {
	Valid bool
	// Reason explains a rejection in user-facing words.
	Reason string
	// Warning is set when the input was accepted without being verified.
	Warning string

	Make      string
	Model     string
	Year      int
	BodyClass string
}

// Verifier is the external verification contract used by the conversation.
type Verifier interface {
	DecodeVIN(ctx context.Context, vin string) Verdict
	ValidateYearMake(ctx context.Context, year int, vehicleMake string) Verdict
}

// Config configures a Client.
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	MakesTTL time.Duration
	// VINPolicy applies to DecodeVIN. Defaults to Critical.
	VINPolicy Policy
	// MakePolicy applies to ValidateYearMake. Defaults to Advisory.
	MakePolicy Policy
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:    DefaultBaseURL,
		Timeout:    10 * time.Second,
		MakesTTL:   24 * time.Hour,
		VINPolicy:  Critical,
		MakePolicy: Advisory,
	}
}

// Client calls the vPIC API.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger

	flights singleflight.Group
	mu      sync.Mutex
	makes   map[string]makeList
}

type makeList struct {
	names     map[string]struct{}
	fetchedAt time.Time
}

// NewClient creates a vPIC client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MakesTTL <= 0 {
		cfg.MakesTTL = def.MakesTTL
	}
	if cfg.VINPolicy == 0 {
		cfg.VINPolicy = def.VINPolicy
	}
	if cfg.MakePolicy == 0 {
		cfg.MakePolicy = def.MakePolicy
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{},
		logger: logger,
		makes:  make(map[string]makeList),
	}
}

// degrade turns a failed lookup into a verdict according to policy.
func (c *Client) degrade(policy Policy, what string, err error) Verdict {
	timeout := isTimeout(err)
	c.logger.Warn("vehicle verification unavailable",
		"lookup", what,
		"policy", policy.String(),
		"timeout", timeout,
		"error", err)

	if policy == Advisory {
		return Verdict{Valid: true, Warning: fmt.Sprintf("Could not verify %s, proceeding anyway.", what)}
	}
	if timeout {
		return Verdict{Reason: ReasonTimeout}
	}
	return Verdict{Reason: fmt.Sprintf("We couldn't verify the %s right now. Please try again.", what)}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
