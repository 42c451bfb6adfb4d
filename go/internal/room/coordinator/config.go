package coordinator

import (
	"fmt"
	"time"
)

// Config holds the readiness protocol tunables. All values are in seconds of
// logical time unless stated otherwise.
type Config struct {
	// JoinGracePeriod exempts a newly joined client from ping and drift checks.
	JoinGracePeriod float64 `yaml:"join_grace_period"`
	// PingTolerance is how stale a client's last ping may get once converged.
	PingTolerance float64 `yaml:"ping_tolerance"`
	// ReadyUpDeadline is how long an epoch may wait for every client to report ready.
	ReadyUpDeadline float64 `yaml:"ready_up_deadline"`
	// SyncTolerance is the allowed drift between a reported and the authoritative timestamp.
	SyncTolerance float64 `yaml:"sync_tolerance"`
	// UnpauseDelay is how far in the future playback activates after convergence.
	UnpauseDelay float64 `yaml:"unpause_delay"`
	VolumeMax    float64 `yaml:"volume_max"`
	// DefaultVolume is already scaled to [0, VolumeMax].
	DefaultVolume float64 `yaml:"default_volume"`
	// TickInterval is the runner cadence in wall-clock seconds.
	TickInterval float64 `yaml:"tick_interval"`
	// MetadataTimeout bounds one metadata fetch in wall-clock seconds.
	MetadataTimeout float64 `yaml:"metadata_timeout"`
	// ExemptJoinersFromDeadline keeps clients inside their join grace period
	// from forcing a hard reload when the ready-up deadline passes.
	ExemptJoinersFromDeadline bool `yaml:"exempt_joiners_from_deadline"`
}

func DefaultConfig() Config {
	return Config{
		JoinGracePeriod:           10,
		PingTolerance:             2,
		ReadyUpDeadline:           10,
		SyncTolerance:             2,
		UnpauseDelay:              1,
		VolumeMax:                 0.25,
		DefaultVolume:             0.125,
		TickInterval:              1.0 / 60,
		MetadataTimeout:           10,
		ExemptJoinersFromDeadline: false,
	}
}

// Validate reports the first tunable that cannot drive the state machine.
func (c Config) Validate() error {
	positive := map[string]float64{
		"ping_tolerance":    c.PingTolerance,
		"ready_up_deadline": c.ReadyUpDeadline,
		"sync_tolerance":    c.SyncTolerance,
		"tick_interval":     c.TickInterval,
		"metadata_timeout":  c.MetadataTimeout,
	}
	for name, v := range positive {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %v", name, v)
		}
	}
	if c.JoinGracePeriod < 0 {
		return fmt.Errorf("join_grace_period must not be negative, got %v", c.JoinGracePeriod)
	}
	if c.UnpauseDelay < 0 {
		return fmt.Errorf("unpause_delay must not be negative, got %v", c.UnpauseDelay)
	}
	if c.VolumeMax <= 0 {
		return fmt.Errorf("volume_max must be positive, got %v", c.VolumeMax)
	}
	if c.DefaultVolume < 0 || c.DefaultVolume > c.VolumeMax {
		return fmt.Errorf("default_volume must be within [0, %v], got %v", c.VolumeMax, c.DefaultVolume)
	}
	return nil
}

func (c Config) tickDuration() time.Duration {
	return seconds(c.TickInterval)
}

func (c Config) metadataTimeout() time.Duration {
	return seconds(c.MetadataTimeout)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
