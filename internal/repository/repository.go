package repository

import (
	"context"
	"database/sql"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Term          TermRepository
	Phase         PhaseRepository
	Subject       SubjectRepository
	ClassSection  ClassSectionRepository
	ScheduleBlock ScheduleBlockRepository
	Student       StudentRepository
	Enrollment    EnrollmentRepository
	Audit         AuditRepository

	// Tx 事务执行器；在事务内构造的 Repository 其 Tx 绑定同一事务（嵌套时使用 SAVEPOINT）
	Tx Transactor
}

// Transactor 事务执行器
// fn 收到的 Repository 中所有子仓库均绑定到同一个事务；fn 返回错误时整体回滚
type Transactor interface {
	Transaction(ctx context.Context, fn func(tx *Repository) error) error
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Term:          NewTermRepo(db),
		Phase:         NewPhaseRepo(db),
		Subject:       NewSubjectRepo(db),
		ClassSection:  NewClassSectionRepo(db),
		ScheduleBlock: NewScheduleBlockRepo(db),
		Student:       NewStudentRepo(db),
		Enrollment:    NewEnrollmentRepo(db),
		Audit:         NewAuditRepo(db),
		Tx:            &gormTransactor{db: db},
	}
}

// Transaction 在单个数据库事务中执行 fn
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	return r.Tx.Transaction(ctx, fn)
}

type gormTransactor struct {
	db *gorm.DB
}

// Transaction 使用 READ COMMITTED 隔离级别；并发正确性依赖行锁与条件更新，而非隔离级别
func (t *gormTransactor) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	}, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}
