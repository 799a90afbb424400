package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupMockMySQL(t *testing.T) (*MySQL, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gdb, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	return NewMySQLWithDB(gdb), mock
}

func TestGetByFingerprintNotFound(t *testing.T) {
	m, mock := setupMockMySQL(t)
	mock.ExpectQuery("SELECT \\* FROM `resume_records` WHERE fingerprint = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"fingerprint"}))

	_, err := m.GetByFingerprint(context.Background(), "no-such-fp")
	assert.ErrorIs(t, err, ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByFingerprintFound(t *testing.T) {
	m, mock := setupMockMySQL(t)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"fingerprint", "resume_id", "raw_text", "summary",
		"skills_json", "embedding_json", "provenance", "last_modified",
	}).AddRow(
		"0123456789abcdef0123456789abcdef", "r-1", "resume body", "summary",
		[]byte(`["Go","Redis"]`), []byte(`[0.1,0.2]`), "upload", now,
	)
	mock.ExpectQuery("SELECT \\* FROM `resume_records` WHERE fingerprint = \\?").
		WillReturnRows(rows)

	rec, err := m.GetByFingerprint(context.Background(), "0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	assert.Equal(t, "r-1", rec.ResumeID)
	assert.Equal(t, []string{"Go", "Redis"}, rec.Skills)
	assert.Equal(t, []float64{0.1, 0.2}, rec.Embedding)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountRecords(t *testing.T) {
	m, mock := setupMockMySQL(t)
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `resume_records`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(12)))

	count, err := m.CountRecords(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), count)
}

func TestTouchLastModifiedMissingRow(t *testing.T) {
	m, mock := setupMockMySQL(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `resume_records` SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := m.TouchLastModified(context.Background(), "no-such-fp", time.Now())
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestListByResumeIDsEmptyInput(t *testing.T) {
	m, _ := setupMockMySQL(t)
	records, err := m.ListByResumeIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, records)
}
