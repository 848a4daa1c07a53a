// Package adaptive lowers rendering detail when frames run over budget and
// restores it once they recover.
package adaptive

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/xtxerr/streamscope/internal/engine/config"
)

// Level represents the current detail reduction level.
type Level int

const (
	// LevelNormal - frames fit the budget, full detail.
	LevelNormal Level = iota

	// LevelWarning - frames close to the budget.
	LevelWarning

	// LevelCritical - frames at or over the budget.
	LevelCritical

	// LevelEmergency - frames far over the budget, minimum detail.
	LevelEmergency
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelNormal:
		return "normal"
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	case LevelEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// DensityScale returns the factor applied to LOD target densities.
func (l Level) DensityScale() float64 {
	switch l {
	case LevelWarning:
		return 0.75
	case LevelCritical:
		return 0.5
	case LevelEmergency:
		return 0.25
	default:
		return 1.0
	}
}

// FrameTimer reports the mean per-frame processing time over a rolling
// window. metrics.Sampler implements it.
type FrameTimer interface {
	MeanProcessingTime() time.Duration
}

// Controller derives the detail level from frame load, the ratio of mean
// frame processing time to the frame budget.
type Controller struct {
	mu sync.RWMutex

	config config.AdaptiveConfig
	budget time.Duration
	frames FrameTimer
	now    func() time.Time

	// Current state
	level     atomic.Int32
	lastCheck time.Time
	lastLevel Level
	lastLoad  float64

	// Statistics
	stats Stats

	// Level change callback
	onLevelChange func(old, new Level)
}

// Stats holds controller statistics.
type Stats struct {
	LevelChanges   int64
	WarningCount   int64
	CriticalCount  int64
	EmergencyCount int64
}

// New creates a new adaptive detail controller.
func New(cfg config.AdaptiveConfig, budget time.Duration, frames FrameTimer) *Controller {
	return &Controller{
		config: cfg,
		budget: budget,
		frames: frames,
		now:    time.Now,
	}
}

// SetClock replaces the clock used for the cooldown.
func (c *Controller) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// SetOnLevelChange sets the callback for level changes.
func (c *Controller) SetOnLevelChange(fn func(old, new Level)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onLevelChange = fn
}

// Check evaluates the current frame load and updates the level.
// The render tick calls it once per frame; evaluations closer together
// than the cooldown return the current level unchanged.
func (c *Controller) Check() Level {
	if !c.config.Enabled || c.budget <= 0 {
		return LevelNormal
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	// Respect cooldown
	if !c.lastCheck.IsZero() && now.Sub(c.lastCheck) < c.config.Recovery.Cooldown {
		return Level(c.level.Load())
	}

	c.lastCheck = now

	load := float64(c.frames.MeanProcessingTime()) / float64(c.budget)
	c.lastLoad = load

	// Determine new level with hysteresis
	newLevel := c.determineLevel(load)

	if newLevel != c.lastLevel {
		c.setLevel(newLevel)
	}

	return newLevel
}

// determineLevel determines the level from load. Rising load switches
// immediately; falling below warning only counts once load is below the
// threshold minus hysteresis.
func (c *Controller) determineLevel(load float64) Level {
	thresholds := c.config.Thresholds
	hysteresis := c.config.Recovery.Hysteresis

	if load >= thresholds.Emergency {
		return LevelEmergency
	}
	if load >= thresholds.Critical {
		return LevelCritical
	}
	if load >= thresholds.Warning {
		return LevelWarning
	}

	switch c.lastLevel {
	case LevelEmergency:
		if load < thresholds.Emergency-hysteresis {
			return LevelCritical
		}
		return LevelEmergency
	case LevelCritical:
		if load < thresholds.Critical-hysteresis {
			return LevelWarning
		}
		return LevelCritical
	case LevelWarning:
		if load < thresholds.Warning-hysteresis {
			return LevelNormal
		}
		return LevelWarning
	default:
		return LevelNormal
	}
}

// setLevel updates the current level and fires callback.
func (c *Controller) setLevel(newLevel Level) {
	oldLevel := c.lastLevel
	c.lastLevel = newLevel
	c.level.Store(int32(newLevel))
	c.stats.LevelChanges++

	switch newLevel {
	case LevelWarning:
		c.stats.WarningCount++
	case LevelCritical:
		c.stats.CriticalCount++
	case LevelEmergency:
		c.stats.EmergencyCount++
	}

	if c.onLevelChange != nil {
		c.onLevelChange(oldLevel, newLevel)
	}
}

// CurrentLevel returns the current level.
func (c *Controller) CurrentLevel() Level {
	return Level(c.level.Load())
}

// DensityScale returns the LOD density factor of the current level.
func (c *Controller) DensityScale() float64 {
	return c.CurrentLevel().DensityScale()
}

// IsEnabled returns whether adaptive detail is enabled.
func (c *Controller) IsEnabled() bool {
	return c.config.Enabled
}

// Stats returns current statistics.
func (c *Controller) Stats() ControllerStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return ControllerStats{
		CurrentLevel:   c.CurrentLevel(),
		Load:           c.lastLoad,
		LevelChanges:   c.stats.LevelChanges,
		WarningCount:   c.stats.WarningCount,
		CriticalCount:  c.stats.CriticalCount,
		EmergencyCount: c.stats.EmergencyCount,
	}
}

// ControllerStats holds controller statistics.
type ControllerStats struct {
	CurrentLevel   Level
	Load           float64
	LevelChanges   int64
	WarningCount   int64
	CriticalCount  int64
	EmergencyCount int64
}
