package database

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// PostgreSQL SQLSTATE
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
	CodeCheckViolation      = "23514"
)

// ConstraintViolation 从驱动错误中提取 SQLSTATE 与约束名
// 同时兼容 pgx（gorm postgres 驱动）与 lib/pq
func ConstraintViolation(err error) (code, constraint string, ok bool) {
	if err == nil {
		return "", "", false
	}

	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code, pgxErr.ConstraintName, true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint, true
	}

	return "", "", false
}

// IsUniqueViolation 判断是否唯一约束冲突，返回冲突的约束名
func IsUniqueViolation(err error) (string, bool) {
	code, constraint, ok := ConstraintViolation(err)
	if !ok || code != CodeUniqueViolation {
		return "", false
	}
	return constraint, true
}

// IsCheckViolation 判断是否 CHECK 约束冲突，返回冲突的约束名
func IsCheckViolation(err error) (string, bool) {
	code, constraint, ok := ConstraintViolation(err)
	if !ok || code != CodeCheckViolation {
		return "", false
	}
	return constraint, true
}
