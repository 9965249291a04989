package fetch

import (
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// NopProgress discards progress events.
type NopProgress struct{}

func (NopProgress) Start(string, int) {}
func (NopProgress) Update(int)        {}
func (NopProgress) Done(int)          {}

// LogProgress logs fetch progress at most once per interval.
type LogProgress struct {
	logger   *zap.Logger
	clock    clockwork.Clock
	interval time.Duration

	collection string
	total      int
	lastLog    time.Time
}

// NewLogProgress creates a throttled progress logger.
func NewLogProgress(logger *zap.Logger, clock clockwork.Clock, interval time.Duration) *LogProgress {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogProgress{logger: logger, clock: clock, interval: interval}
}

func (p *LogProgress) Start(collection string, total int) {
	p.collection = collection
	p.total = total
	p.lastLog = p.clock.Now()
	p.logger.Info("downloading documents",
		zap.String("collection", collection),
		zap.Int("total", total),
	)
}

func (p *LogProgress) Update(fetched int) {
	now := p.clock.Now()
	if now.Sub(p.lastLog) < p.interval {
		return
	}
	p.lastLog = now
	fields := []zap.Field{
		zap.String("collection", p.collection),
		zap.Int("fetched", fetched),
		zap.Int("total", p.total),
	}
	if p.total > 0 {
		fields = append(fields, zap.Float64("percent", float64(fetched)/float64(p.total)*100))
	}
	p.logger.Info("download progress", fields...)
}

func (p *LogProgress) Done(fetched int) {
	p.logger.Info("download finished",
		zap.String("collection", p.collection),
		zap.Int("fetched", fetched),
	)
}
