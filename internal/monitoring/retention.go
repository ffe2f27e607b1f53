package monitoring

import (
	"time"

	"github.com/opsprep/user-api/internal/services"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Pruner deletes audit events older than a configured age on a cron cadence.
type Pruner struct {
	audit    services.AuditServiceProvider
	schedule cron.Schedule
	maxAge   time.Duration
	ticker   *time.Ticker
	done     chan bool
}

// NewPruner creates a pruner from a standard cron expression and a maximum
// audit-row age.
func NewPruner(audit services.AuditServiceProvider, cronExpr string, maxAge time.Duration) (*Pruner, error) {
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, err
	}
	return &Pruner{
		audit:    audit,
		schedule: schedule,
		maxAge:   maxAge,
		done:     make(chan bool),
	}, nil
}

// Run starts the pruner's ticking loop.
func (p *Pruner) Run() {
	log.Info().Dur("max_age", p.maxAge).Msg("Starting audit retention pruner...")
	nextRun := p.schedule.Next(time.Now())
	p.ticker = time.NewTicker(1 * time.Minute)
	defer p.ticker.Stop()

	for {
		select {
		case <-p.done:
			log.Info().Msg("Stopping audit retention pruner.")
			return
		case now := <-p.ticker.C:
			if now.After(nextRun) {
				p.prune(now)
				nextRun = p.schedule.Next(now)
			}
		}
	}
}

// Stop halts the pruner.
func (p *Pruner) Stop() {
	p.done <- true
}

func (p *Pruner) prune(now time.Time) {
	cutoff := now.Add(-p.maxAge)
	removed, err := p.audit.PruneOlderThan(cutoff)
	if err != nil {
		log.Error().Err(err).Msg("Audit prune failed")
		return
	}
	if removed > 0 {
		log.Info().Int64("removed", removed).Time("cutoff", cutoff).Msg("Pruned old audit events")
	}
}
