package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"resume-ranker-go/internal/config"
	"resume-ranker-go/internal/constants"
	applog "resume-ranker-go/internal/logger"
	"resume-ranker-go/internal/storage/models"
	"resume-ranker-go/internal/types"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// ErrRecordNotFound 记录库中不存在该简历
var ErrRecordNotFound = errors.New("resume record not found")

// MySQL 提供简历记录库功能
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 创建MySQL客户端并自动迁移表结构
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	gormConfig := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Warn),
		PrepareStmt:                              true,
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	m := &MySQL{db: db, cfg: cfg}
	if err := m.db.AutoMigrate(&models.ResumeRow{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	applog.Info().Str("database", cfg.Database).Msg("成功连接到MySQL并自动迁移数据库结构")
	return m, nil
}

// NewMySQLWithDB 用现成的gorm连接构造, 测试用
func NewMySQLWithDB(db *gorm.DB) *MySQL {
	return &MySQL{db: db}
}

// DB 返回GORM数据库连接实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// UpsertRecord 按指纹写入简历记录, 已存在时整行覆盖
func (m *MySQL) UpsertRecord(ctx context.Context, rec *types.ResumeRecord) error {
	row, err := models.FromRecord(rec, constants.EmbeddingModelVersion)
	if err != nil {
		return err
	}
	err = m.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "fingerprint"}},
		UpdateAll: true,
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("写入简历记录失败: %w", err)
	}
	return nil
}

// GetByFingerprint 按指纹查简历记录
func (m *MySQL) GetByFingerprint(ctx context.Context, fingerprint string) (*types.ResumeRecord, error) {
	var row models.ResumeRow
	err := m.db.WithContext(ctx).Where("fingerprint = ?", fingerprint).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询简历记录失败: %w", err)
	}
	return row.ToRecord()
}

// GetByResumeID 按简历ID查记录
func (m *MySQL) GetByResumeID(ctx context.Context, resumeID string) (*types.ResumeRecord, error) {
	var row models.ResumeRow
	err := m.db.WithContext(ctx).Where("resume_id = ?", resumeID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询简历记录失败: %w", err)
	}
	return row.ToRecord()
}

// ListAll 返回全部简历记录, 按指纹排序保证遍历顺序稳定
func (m *MySQL) ListAll(ctx context.Context) ([]*types.ResumeRecord, error) {
	var rows []models.ResumeRow
	if err := m.db.WithContext(ctx).Order("fingerprint asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("列出简历记录失败: %w", err)
	}
	records := make([]*types.ResumeRecord, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].ToRecord()
		if err != nil {
			applog.Warn().Err(err).Str("fingerprint", rows[i].Fingerprint).Msg("简历记录反序列化失败, 跳过")
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// ListByResumeIDs 按简历ID批量查记录
func (m *MySQL) ListByResumeIDs(ctx context.Context, resumeIDs []string) ([]*types.ResumeRecord, error) {
	if len(resumeIDs) == 0 {
		return nil, nil
	}
	var rows []models.ResumeRow
	if err := m.db.WithContext(ctx).Where("resume_id IN ?", resumeIDs).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("批量查询简历记录失败: %w", err)
	}
	records := make([]*types.ResumeRecord, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].ToRecord()
		if err != nil {
			applog.Warn().Err(err).Str("fingerprint", rows[i].Fingerprint).Msg("简历记录反序列化失败, 跳过")
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// CountRecords 简历记录总数
func (m *MySQL) CountRecords(ctx context.Context) (int64, error) {
	var count int64
	if err := m.db.WithContext(ctx).Model(&models.ResumeRow{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("统计简历记录失败: %w", err)
	}
	return count, nil
}

// TouchLastModified 去重命中时只刷新最后修改时间
func (m *MySQL) TouchLastModified(ctx context.Context, fingerprint string, at time.Time) error {
	res := m.db.WithContext(ctx).Model(&models.ResumeRow{}).
		Where("fingerprint = ?", fingerprint).
		Update("last_modified", at)
	if res.Error != nil {
		return fmt.Errorf("刷新最后修改时间失败: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// DeleteByFingerprint 按指纹删除记录, 不存在时静默成功
func (m *MySQL) DeleteByFingerprint(ctx context.Context, fingerprint string) error {
	res := m.db.WithContext(ctx).Where("fingerprint = ?", fingerprint).Delete(&models.ResumeRow{})
	if res.Error != nil {
		return fmt.Errorf("删除简历记录失败: %w", res.Error)
	}
	return nil
}

// DeleteByResumeID 按简历ID删除记录, 返回被删行的指纹
func (m *MySQL) DeleteByResumeID(ctx context.Context, resumeID string) (string, error) {
	var row models.ResumeRow
	err := m.db.WithContext(ctx).Where("resume_id = ?", resumeID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrRecordNotFound
	}
	if err != nil {
		return "", fmt.Errorf("查询待删除记录失败: %w", err)
	}
	if err := m.db.WithContext(ctx).Delete(&row).Error; err != nil {
		return "", fmt.Errorf("删除简历记录失败: %w", err)
	}
	return row.Fingerprint, nil
}
