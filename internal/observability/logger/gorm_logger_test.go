package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	gormlogger "gorm.io/gorm/logger"
)

func TestSQLVerb(t *testing.T) {
	cases := []struct {
		sql  string
		want string
	}{
		{"SELECT * FROM usage_records WHERE user_id = ?", "SELECT"},
		{"update usage_records set count = count + 1 where count < ?", "UPDATE"},
		{"INSERT INTO usage_records (user_id) VALUES (?)", "INSERT"},
		{"WITH stale AS (SELECT id FROM usage_records) DELETE FROM usage_records", "SELECT"},
		{"CREATE INDEX ix_usage_records_window_start ON usage_records", "OTHER"},
		{"", "OTHER"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, sqlVerb(tc.sql), tc.sql)
	}
}

func TestGormLogger_NotFoundIsNotAFailureByDefault(t *testing.T) {
	l := NewGormLogger(DefaultGormLoggerConfig())
	assert.False(t, l.queryFailed(gormlogger.ErrRecordNotFound))
	assert.True(t, l.queryFailed(errors.New("connection reset")))

	strict := NewGormLogger(GormLoggerConfig{Level: gormlogger.Warn, NotFoundIsError: true})
	assert.True(t, strict.queryFailed(gormlogger.ErrRecordNotFound))
}

func TestGormLogger_LogModeReturnsCopy(t *testing.T) {
	base := NewGormLogger(DefaultGormLoggerConfig())
	raised := base.LogMode(gormlogger.Info)

	assert.Equal(t, gormlogger.Warn, base.cfg.Level)
	assert.Equal(t, gormlogger.Info, raised.(*GormLogger).cfg.Level)
}
