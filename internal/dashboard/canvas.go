package dashboard

import (
	"sync"

	"github.com/google/uuid"

	"salesdash/internal/models"
)

// Canvas ids rendered on the dashboard page
const (
	SalesTrendCanvas     = "salesTrendChart"
	AdDistributionCanvas = "adDistributionChart"
	RatioTrendCanvas     = "ratioTrendChart"
)

// CanvasIDs lists every chart canvas in page order
var CanvasIDs = []string{SalesTrendCanvas, AdDistributionCanvas, RatioTrendCanvas}

// Chart is one live chart instance bound to a canvas
type Chart struct {
	ID     string
	Config models.ChartConfig

	mu        sync.Mutex
	destroyed bool
}

// Destroy releases the instance. Calling it twice is harmless.
func (c *Chart) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroyed = true
}

// Destroyed reports whether the instance was released
func (c *Chart) Destroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

// Canvas owns at most one chart instance
type Canvas struct {
	ID string

	mu      sync.Mutex
	current *Chart
}

// NewCanvas creates an empty canvas
func NewCanvas(id string) *Canvas {
	return &Canvas{ID: id}
}

// Render destroys the current instance and installs a new one built from cfg.
// A nil cfg leaves the canvas cleared.
func (c *Canvas) Render(cfg *models.ChartConfig) *Chart {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		c.current.Destroy()
		c.current = nil
	}
	if cfg == nil {
		return nil
	}

	c.current = &Chart{ID: uuid.NewString(), Config: *cfg}
	return c.current
}

// Clear destroys the current instance, if any
func (c *Canvas) Clear() {
	c.Render(nil)
}

// Chart returns the live instance, nil when the canvas is cleared
func (c *Canvas) Chart() *Chart {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}
