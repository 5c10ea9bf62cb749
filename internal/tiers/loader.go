package tiers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/stride-lab/project-stride/internal/core/period"
	"github.com/stride-lab/project-stride/internal/core/rank"
)

const (
	fileRankConfig    = "rank_config.json"
	fileWeekRewards   = "week_rewards.json"
	fileSeasonRewards = "season_rewards.json"

	defaultWeeklySettlementDay = 1 // Monday
)

// rewardEntry is the on-disk shape of one tier row. Ranking holds the
// inclusive range as strings ("1" or "2".."10"); the per-category keys hold
// [item_id, amount] pairs.
type rewardEntry struct {
	Ranking        []string `json:"Ranking"`
	RunReward      [][]int  `json:"RunReward"`
	RowingReward   [][]int  `json:"RowingReward"`
	BicycleReward  [][]int  `json:"BicycleReward"`
	BraceletReward [][]int  `json:"BraceletReward"`
}

type configRoot struct {
	ID               int `json:"ID"`
	WeeklySettlement int `json:"WeeklySettlement"`
	SeasonSettlement int `json:"SeasonSettlement"`
}

// FileLoader implements Provider from a directory of JSON files, reloading
// whenever a file in the directory changes.
type FileLoader struct {
	dir     string
	watcher *fsnotify.Watcher

	mu            sync.RWMutex
	weeklyDay     int
	weekEntries   []rewardEntry
	seasonEntries []rewardEntry
}

// NewFileLoader reads the tier files from dir and starts watching it.
func NewFileLoader(dir string) (*FileLoader, error) {
	l := &FileLoader{dir: dir, weeklyDay: defaultWeeklySettlementDay}
	if err := l.Reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create tier config watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch tier config dir %q: %w", dir, err)
	}
	l.watcher = watcher
	go l.watch()

	return l, nil
}

func (l *FileLoader) watch() {
	for {
		select {
		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			if !strings.HasSuffix(event.Name, ".json") {
				continue
			}
			if err := l.Reload(); err != nil {
				slog.Error("[Tiers] Reload failed, keeping previous tables", "file", event.Name, "error", err)
				continue
			}
			slog.Info("[Tiers] Reloaded reward tier config", "file", event.Name)
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("[Tiers] Config watcher error", "error", err)
		}
	}
}

// Reload re-reads all tier files. On parse failure the previous tables stay
// in effect.
func (l *FileLoader) Reload() error {
	weeklyDay := defaultWeeklySettlementDay
	cfgPath := filepath.Join(l.dir, fileRankConfig)
	if raw, err := os.ReadFile(cfgPath); err == nil {
		var roots []configRoot
		if err := json.Unmarshal(raw, &roots); err != nil {
			return fmt.Errorf("parse %s: %w", fileRankConfig, err)
		}
		if len(roots) > 0 && roots[0].WeeklySettlement >= 1 && roots[0].WeeklySettlement <= 7 {
			weeklyDay = roots[0].WeeklySettlement
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read %s: %w", fileRankConfig, err)
	}

	week, err := l.readEntries(fileWeekRewards)
	if err != nil {
		return err
	}
	season, err := l.readEntries(fileSeasonRewards)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.weeklyDay = weeklyDay
	l.weekEntries = week
	l.seasonEntries = season
	l.mu.Unlock()
	return nil
}

func (l *FileLoader) readEntries(name string) ([]rewardEntry, error) {
	raw, err := os.ReadFile(filepath.Join(l.dir, name))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	var entries []rewardEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return entries, nil
}

// TiersFor builds the tier table for a category and kind from the current
// snapshot.
func (l *FileLoader) TiersFor(category rank.Category, kind period.Kind) []Tier {
	l.mu.RLock()
	entries := l.weekEntries
	if kind == period.Seasonal {
		entries = l.seasonEntries
	}
	l.mu.RUnlock()

	tiers := make([]Tier, 0, len(entries))
	for _, e := range entries {
		from, to, err := parseRange(e.Ranking)
		if err != nil {
			slog.Warn("[Tiers] Skipping entry with bad rank range", "ranking", e.Ranking, "error", err)
			continue
		}
		rewards := e.rewardsFor(category)
		if len(rewards) == 0 {
			continue
		}
		tiers = append(tiers, Tier{RankFrom: from, RankTo: to, Rewards: rewards})
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].RankFrom < tiers[j].RankFrom })
	return tiers
}

// WeeklySettlementDay returns the configured settlement weekday.
func (l *FileLoader) WeeklySettlementDay() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.weeklyDay
}

// Close stops the config watcher.
func (l *FileLoader) Close() error {
	if l.watcher == nil {
		return nil
	}
	return l.watcher.Close()
}

func (e rewardEntry) rewardsFor(category rank.Category) []RewardItem {
	var pairs [][]int
	switch category {
	case rank.CategoryRowing:
		pairs = e.RowingReward
	case rank.CategoryBicycle:
		pairs = e.BicycleReward
	case rank.CategoryBracelet:
		pairs = e.BraceletReward
	default:
		pairs = e.RunReward
	}

	items := make([]RewardItem, 0, len(pairs))
	for _, p := range pairs {
		if len(p) < 2 {
			continue
		}
		items = append(items, RewardItem{ItemID: p[0], Amount: p[1]})
	}
	return items
}

func parseRange(ranking []string) (int, int, error) {
	if len(ranking) == 0 {
		return 0, 0, fmt.Errorf("empty rank range")
	}
	from, err := strconv.Atoi(ranking[0])
	if err != nil {
		return 0, 0, fmt.Errorf("bad rank %q: %w", ranking[0], err)
	}
	to := from
	if len(ranking) > 1 {
		to, err = strconv.Atoi(ranking[1])
		if err != nil {
			return 0, 0, fmt.Errorf("bad rank %q: %w", ranking[1], err)
		}
	}
	return from, to, nil
}
