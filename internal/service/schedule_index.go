package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"course-registration/backend/internal/model"
	"course-registration/backend/internal/repository"
)

const timetableKeyPrefix = "timetable:section:"

// BlockCache 课表缓存后端
// *redis.Client 与 *cache.Local 均满足该接口
type BlockCache interface {
	GetMany(ctx context.Context, keys []string) (map[string][]byte, error)
	SetMany(ctx context.Context, values map[string][]byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// ScheduleIndex 教学班上课时间块索引
// 读取顺序：缓存 → 数据库 → 失败即拒绝（不允许在无法判断冲突时放行）
type ScheduleIndex interface {
	// BlocksFor 返回每个教学班的时间块；结果包含 sectionIDs 中的每一个 ID（无时间块时为空切片）
	BlocksFor(ctx context.Context, repo *repository.Repository, sectionIDs []string) (map[string][]model.ScheduleBlock, error)
	// Refresh 从数据库重新加载并覆盖缓存
	Refresh(ctx context.Context, repo *repository.Repository, sectionIDs []string) (int, error)
	Invalidate(ctx context.Context, sectionIDs ...string) error
}

// cachedBlock 缓存中的时间块格式
type cachedBlock struct {
	Day   int `json:"d"`
	Start int `json:"s"`
	End   int `json:"e"`
}

type scheduleIndex struct {
	cache  BlockCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewScheduleIndex 创建时间块索引；cache 为 nil 时直接读数据库
func NewScheduleIndex(cache BlockCache, ttl time.Duration, logger *zap.Logger) ScheduleIndex {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &scheduleIndex{cache: cache, ttl: ttl, logger: logger}
}

func timetableKey(sectionID string) string {
	return timetableKeyPrefix + sectionID
}

func (x *scheduleIndex) BlocksFor(ctx context.Context, repo *repository.Repository, sectionIDs []string) (map[string][]model.ScheduleBlock, error) {
	result := make(map[string][]model.ScheduleBlock, len(sectionIDs))
	if len(sectionIDs) == 0 {
		return result, nil
	}

	missing := x.readCache(ctx, sectionIDs, result)
	if len(missing) == 0 {
		return result, nil
	}

	loaded, err := x.load(ctx, repo, missing)
	if err != nil {
		x.logger.Error("读取教学班时间块失败",
			zap.Strings("class_section_ids", missing),
			zap.Error(err),
		)
		return nil, err
	}
	for id, blocks := range loaded {
		result[id] = blocks
	}

	x.writeCache(ctx, loaded)
	return result, nil
}

func (x *scheduleIndex) Refresh(ctx context.Context, repo *repository.Repository, sectionIDs []string) (int, error) {
	if len(sectionIDs) == 0 {
		return 0, nil
	}
	loaded, err := x.load(ctx, repo, sectionIDs)
	if err != nil {
		return 0, err
	}
	x.writeCache(ctx, loaded)
	return len(loaded), nil
}

func (x *scheduleIndex) Invalidate(ctx context.Context, sectionIDs ...string) error {
	if x.cache == nil || len(sectionIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(sectionIDs))
	for _, id := range sectionIDs {
		keys = append(keys, timetableKey(id))
	}
	return x.cache.Delete(ctx, keys...)
}

// readCache 将命中的教学班写入 result，返回未命中的 ID
// 缓存不可用或数据损坏一律视为未命中
func (x *scheduleIndex) readCache(ctx context.Context, sectionIDs []string, result map[string][]model.ScheduleBlock) []string {
	if x.cache == nil {
		return sectionIDs
	}

	keys := make([]string, 0, len(sectionIDs))
	for _, id := range sectionIDs {
		keys = append(keys, timetableKey(id))
	}

	hits, err := x.cache.GetMany(ctx, keys)
	if err != nil {
		x.logger.Warn("课表缓存读取失败，回退数据库", zap.Error(err))
		return sectionIDs
	}

	var missing []string
	for _, id := range sectionIDs {
		raw, ok := hits[timetableKey(id)]
		if !ok {
			missing = append(missing, id)
			continue
		}
		var cached []cachedBlock
		if err := json.Unmarshal(raw, &cached); err != nil {
			x.logger.Warn("课表缓存数据损坏", zap.String("class_section_id", id), zap.Error(err))
			missing = append(missing, id)
			continue
		}
		blocks := make([]model.ScheduleBlock, 0, len(cached))
		for _, c := range cached {
			blocks = append(blocks, model.ScheduleBlock{
				ClassSectionID: id,
				DayOfWeek:      c.Day,
				StartPeriod:    c.Start,
				EndPeriod:      c.End,
			})
		}
		result[id] = blocks
	}
	return missing
}

func (x *scheduleIndex) load(ctx context.Context, repo *repository.Repository, sectionIDs []string) (map[string][]model.ScheduleBlock, error) {
	blocks, err := repo.ScheduleBlock.ListBySections(ctx, sectionIDs)
	if err != nil {
		return nil, err
	}
	loaded := make(map[string][]model.ScheduleBlock, len(sectionIDs))
	for _, id := range sectionIDs {
		loaded[id] = []model.ScheduleBlock{}
	}
	for _, b := range blocks {
		loaded[b.ClassSectionID] = append(loaded[b.ClassSectionID], b)
	}
	return loaded, nil
}

// writeCache 回填缓存，失败只记录日志
func (x *scheduleIndex) writeCache(ctx context.Context, loaded map[string][]model.ScheduleBlock) {
	if x.cache == nil || len(loaded) == 0 {
		return
	}
	values := make(map[string][]byte, len(loaded))
	for id, blocks := range loaded {
		cached := make([]cachedBlock, 0, len(blocks))
		for _, b := range blocks {
			cached = append(cached, cachedBlock{Day: b.DayOfWeek, Start: b.StartPeriod, End: b.EndPeriod})
		}
		raw, err := json.Marshal(cached)
		if err != nil {
			continue
		}
		values[timetableKey(id)] = raw
	}
	if err := x.cache.SetMany(ctx, values, x.ttl); err != nil {
		x.logger.Warn("课表缓存回填失败", zap.Error(err))
	}
}
