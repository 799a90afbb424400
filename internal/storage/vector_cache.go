package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"resume-ranker-go/internal/constants"
	"resume-ranker-go/internal/fingerprint"
	"resume-ranker-go/internal/logger"
	"resume-ranker-go/internal/parser"
	"resume-ranker-go/internal/types"
)

// ErrCacheWriteConflict 同一指纹的并发写入没抢到写锁
var ErrCacheWriteConflict = errors.New("concurrent write on same fingerprint")

// VectorCacheStore 内容寻址的简历向量缓存
type VectorCacheStore interface {
	// Upsert 写入一份简历。指纹已存在时只刷新时间戳并返回false,
	// 不重复嵌入、不重写向量库
	Upsert(ctx context.Context, rec *types.ResumeRecord) (bool, error)
	// Get 按指纹取记录, 不存在时返回 ErrRecordNotFound
	Get(ctx context.Context, fp string) (*types.ResumeRecord, error)
	// QueryNearest 向量近邻查询, 相似度降序、最后修改时间降序、简历ID升序
	QueryNearest(ctx context.Context, vector []float64, k int) ([]types.Neighbor, error)
	// All 返回池中全部记录
	All(ctx context.Context) ([]*types.ResumeRecord, error)
	// Count 池中记录总数
	Count(ctx context.Context) (int64, error)
	// Delete 按简历ID删除记录及其全部向量点
	Delete(ctx context.Context, resumeID string) error
}

// 确保CacheStore实现了VectorCacheStore接口
var _ VectorCacheStore = (*CacheStore)(nil)

// CacheStore 组合Redis(去重/锁) + MySQL(记录库) + Qdrant(向量)
// 实现内容寻址缓存。写路径按指纹用分布式锁串行化。
type CacheStore struct {
	redis    *Redis
	mysql    *MySQL
	qdrant   VectorDatabase
	embedder *parser.Generator
}

// NewCacheStore 创建缓存存储
func NewCacheStore(r *Redis, m *MySQL, q VectorDatabase, embedder *parser.Generator) *CacheStore {
	return &CacheStore{redis: r, mysql: m, qdrant: q, embedder: embedder}
}

// Upsert 写入一份简历。流程: 指纹计算 -> 写锁 -> 取代同resume_id的
// 旧指纹条目 -> 去重检查 -> (未命中时) 嵌入全文与分节 ->
// 落库MySQL与Qdrant -> 登记指纹映射。
// 返回值表示是否产生了新记录。
func (s *CacheStore) Upsert(ctx context.Context, rec *types.ResumeRecord) (bool, error) {
	if rec == nil {
		return false, fmt.Errorf("record不能为空")
	}
	if strings.TrimSpace(rec.ResumeID) == "" {
		return false, fmt.Errorf("resume_id不能为空")
	}
	if rec.Fingerprint == "" {
		rec.Fingerprint = fingerprint.Fingerprint(rec.RawText)
	}
	if rec.LastModified.IsZero() {
		rec.LastModified = time.Now().UTC()
	}

	lockKey := fmt.Sprintf(constants.KeyFingerprintLock, rec.Fingerprint)
	lockValue, err := s.redis.AcquireLock(ctx, lockKey, constants.WriteLockTTL)
	if err != nil {
		return false, fmt.Errorf("获取写锁失败: %w", err)
	}
	if lockValue == "" {
		return false, fmt.Errorf("指纹 %s 正在被并发写入: %w", rec.Fingerprint, ErrCacheWriteConflict)
	}
	defer func() {
		if _, rerr := s.redis.ReleaseLock(ctx, lockKey, lockValue); rerr != nil {
			logger.Warn().Err(rerr).Str("fingerprint", rec.Fingerprint).Msg("释放写锁失败")
		}
	}()

	if err := s.supersedePrior(ctx, rec); err != nil {
		return false, err
	}

	exists, err := s.redis.CheckAndAddFingerprint(ctx, rec.Fingerprint)
	if err != nil {
		return false, fmt.Errorf("指纹去重检查失败: %w", err)
	}
	if exists {
		// 命中缓存: 只刷新时间戳。Redis有而MySQL没有说明上次写入
		// 中途失败, 这种情况按未命中重做完整写入。
		err = s.mysql.TouchLastModified(ctx, rec.Fingerprint, rec.LastModified)
		if err == nil {
			logger.Debug().Str("fingerprint", rec.Fingerprint).Str("resume_id", rec.ResumeID).Msg("指纹命中, 跳过重复嵌入")
			return false, nil
		}
		if !errors.Is(err, ErrRecordNotFound) {
			return false, err
		}
		logger.Warn().Str("fingerprint", rec.Fingerprint).Msg("指纹已登记但记录缺失, 重做完整写入")
	}

	s.embedRecord(ctx, rec)

	if err := s.mysql.UpsertRecord(ctx, rec); err != nil {
		return false, err
	}
	if err := s.qdrant.UpsertResumePoints(ctx, rec); err != nil {
		return false, err
	}
	if err := s.redis.MapFingerprintToResumeID(ctx, rec.Fingerprint, rec.ResumeID); err != nil {
		logger.Warn().Err(err).Str("fingerprint", rec.Fingerprint).Msg("登记指纹映射失败")
	}

	logger.Info().
		Str("fingerprint", rec.Fingerprint).
		Str("resume_id", rec.ResumeID).
		Str("provenance", string(rec.Provenance)).
		Msg("简历已写入向量缓存")
	return true, nil
}

// supersedePrior 同一resume_id在新指纹下重新出现时, 旧内容的
// 记录行、向量点与指纹登记全部清掉, 新条目取代旧条目。
// 不清理会留下两份都可被检索的同人简历, 且旧行的resume_id唯一索引
// 会让新写入落到旧指纹主键上。
func (s *CacheStore) supersedePrior(ctx context.Context, rec *types.ResumeRecord) error {
	prior, err := s.mysql.GetByResumeID(ctx, rec.ResumeID)
	if errors.Is(err, ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("查询该简历的旧缓存条目失败: %w", err)
	}
	if prior.Fingerprint == rec.Fingerprint {
		return nil
	}

	if err := s.mysql.DeleteByFingerprint(ctx, prior.Fingerprint); err != nil {
		return fmt.Errorf("删除旧简历记录失败: %w", err)
	}
	if err := s.qdrant.DeleteResumePoints(ctx, rec.ResumeID); err != nil {
		return fmt.Errorf("删除旧向量点失败: %w", err)
	}
	if err := s.redis.RemoveFingerprint(ctx, prior.Fingerprint); err != nil {
		return fmt.Errorf("注销旧指纹失败: %w", err)
	}

	logger.Info().
		Str("resume_id", rec.ResumeID).
		Str("old_fingerprint", prior.Fingerprint).
		Str("fingerprint", rec.Fingerprint).
		Msg("简历内容已变化, 旧缓存条目被取代")
	return nil
}

// embedRecord 生成全文与分节向量。嵌入服务不可用时记录降级为
// 零向量, 仍然入库, 只是预筛阶段不可见。
func (s *CacheStore) embedRecord(ctx context.Context, rec *types.ResumeRecord) {
	if s.embedder == nil {
		return
	}

	vec, err := s.embedder.Embed(ctx, rec.RawText)
	if err != nil {
		logger.Warn().Err(err).Str("resume_id", rec.ResumeID).Msg("全文嵌入失败, 以零向量入库")
		vec = make([]float64, s.embedder.Dimensions())
	}
	rec.Embedding = vec

	sections := map[string]string{
		constants.SectionSummary:    rec.Summary,
		constants.SectionSkills:     strings.Join(rec.Skills, ", "),
		constants.SectionExperience: experienceText(rec.Experience),
	}
	rec.SectionEmbeddings = make(map[string][]float64, len(sections))
	for name, text := range sections {
		if strings.TrimSpace(text) == "" {
			continue
		}
		sv, serr := s.embedder.EmbedSection(ctx, text)
		if serr != nil {
			logger.Warn().Err(serr).Str("section", name).Msg("分节嵌入失败, 跳过该节")
			continue
		}
		if !types.IsZeroVector(sv) {
			rec.SectionEmbeddings[name] = sv
		}
	}
}

func experienceText(entries []types.ExperienceEntry) string {
	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(e.Title)
		sb.WriteByte(' ')
		sb.WriteString(e.Company)
		sb.WriteByte('\n')
		sb.WriteString(strings.Join(e.Bullets, "\n"))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Get 按指纹取记录
func (s *CacheStore) Get(ctx context.Context, fp string) (*types.ResumeRecord, error) {
	return s.mysql.GetByFingerprint(ctx, fp)
}

// QueryNearest 向量近邻查询。向Qdrant多取一倍余量, 回表MySQL后在
// 进程内重排: 相似度降序 -> 最后修改时间降序 -> 简历ID升序。
func (s *CacheStore) QueryNearest(ctx context.Context, vector []float64, k int) ([]types.Neighbor, error) {
	if k <= 0 {
		return nil, nil
	}

	hits, err := s.qdrant.SearchSimilarResumes(ctx, vector, k*2)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	similarity := make(map[string]float64, len(hits))
	ids := make([]string, 0, len(hits))
	for _, hit := range hits {
		id := hit.ResumeID()
		if id == "" {
			continue
		}
		if _, seen := similarity[id]; !seen {
			ids = append(ids, id)
		}
		if float64(hit.Score) > similarity[id] {
			similarity[id] = float64(hit.Score)
		}
	}

	records, err := s.mysql.ListByResumeIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	neighbors := make([]types.Neighbor, 0, len(records))
	for _, rec := range records {
		neighbors = append(neighbors, types.Neighbor{
			Record:     rec,
			Similarity: similarity[rec.ResumeID],
		})
	}
	sort.SliceStable(neighbors, func(i, j int) bool {
		if neighbors[i].Similarity != neighbors[j].Similarity {
			return neighbors[i].Similarity > neighbors[j].Similarity
		}
		if !neighbors[i].Record.LastModified.Equal(neighbors[j].Record.LastModified) {
			return neighbors[i].Record.LastModified.After(neighbors[j].Record.LastModified)
		}
		return neighbors[i].Record.ResumeID < neighbors[j].Record.ResumeID
	})
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

// All 返回池中全部记录
func (s *CacheStore) All(ctx context.Context) ([]*types.ResumeRecord, error) {
	return s.mysql.ListAll(ctx)
}

// Count 池中记录总数
func (s *CacheStore) Count(ctx context.Context) (int64, error) {
	return s.mysql.CountRecords(ctx)
}

// Delete 按简历ID删除记录、向量点与指纹登记
func (s *CacheStore) Delete(ctx context.Context, resumeID string) error {
	fp, err := s.mysql.DeleteByResumeID(ctx, resumeID)
	if err != nil {
		return err
	}
	if err := s.qdrant.DeleteResumePoints(ctx, resumeID); err != nil {
		return err
	}
	if err := s.redis.RemoveFingerprint(ctx, fp); err != nil {
		return err
	}
	logger.Info().Str("resume_id", resumeID).Str("fingerprint", fp).Msg("简历已从向量缓存删除")
	return nil
}
