// Package patterns mines recurring anomaly tags from a feed's high-risk
// frame history so operators can see what keeps setting a camera off.
package patterns

import (
	"log/slog"
	"sort"
	"time"

	"github.com/safexstack/safex-monitor/internal/models"
)

// TagPattern is one aggregated anomaly tag across recent high-risk frames.
type TagPattern struct {
	Tag          string    `json:"tag"`
	Count        int       `json:"count"`
	AverageScore float64   `json:"average_score"`
	LastSeen     time.Time `json:"last_seen"`
}

// Miner aggregates high-risk frames into per-tag patterns.
type Miner struct {
	logger *slog.Logger
}

// NewMiner constructs a Miner.
func NewMiner(logger *slog.Logger) *Miner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Miner{logger: logger}
}

type tagAggregate struct {
	count    int
	total    float64
	lastSeen time.Time
}

// Mine returns the top-k tags by occurrence, most frequent first; ties
// break toward the higher average score. The "error" tag is excluded since
// it marks classification failures, not scene content.
func (m *Miner) Mine(frames []models.FrameScore, topK int) []TagPattern {
	if len(frames) == 0 {
		return nil
	}
	if topK < 1 {
		topK = 5
	}

	stats := make(map[string]*tagAggregate)
	for _, frame := range frames {
		for _, tag := range frame.Tags {
			if tag == "" || tag == "error" {
				continue
			}
			agg, ok := stats[tag]
			if !ok {
				agg = &tagAggregate{}
				stats[tag] = agg
			}
			agg.count++
			agg.total += frame.Score
			if frame.Timestamp.After(agg.lastSeen) {
				agg.lastSeen = frame.Timestamp
			}
		}
	}

	mined := make([]TagPattern, 0, len(stats))
	for tag, agg := range stats {
		mined = append(mined, TagPattern{
			Tag:          tag,
			Count:        agg.count,
			AverageScore: agg.total / float64(agg.count),
			LastSeen:     agg.lastSeen,
		})
	}
	sort.Slice(mined, func(i, j int) bool {
		if mined[i].Count != mined[j].Count {
			return mined[i].Count > mined[j].Count
		}
		return mined[i].AverageScore > mined[j].AverageScore
	})
	if len(mined) > topK {
		mined = mined[:topK]
	}

	m.logger.Debug("mined tag patterns", slog.Int("tags", len(mined)), slog.Int("frames", len(frames)))
	return mined
}
