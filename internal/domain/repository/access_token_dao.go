package repository

import (
	"context"
	"time"

	"github.com/turtacn/authz/internal/domain/models"
)

// AccessTokenDAO 定义访问令牌跟踪记录的持久化契约
// 同一 JTI 上的并发写入由存储层保证原子性
// 实现类：
//   - internal/infrastructure/persistence/postgres/access_token_dao_gorm.go
//   - internal/infrastructure/persistence/postgres/access_token_dao_pgx.go
type AccessTokenDAO interface {
	// Create 插入新的跟踪记录
	// 返回：
	//   - bool: JTI 已存在时为 false，且不修改已有记录
	Create(ctx context.Context, info *models.AccessTokenInfo) (bool, error)

	// FindByJTI 根据 JTI 查询，不存在时返回 nil, nil
	FindByJTI(ctx context.Context, jti string) (*models.AccessTokenInfo, error)

	// MarkRevoked 仅当记录处于 ACTIVE 状态时将其置为 REVOKED
	// 返回：
	//   - bool: 本次调用是否完成了状态迁移
	MarkRevoked(ctx context.Context, jti string, revokedAt time.Time) (bool, error)

	// FindExpired 返回 expires_at 早于 before 的全部 JTI（不区分状态）
	FindExpired(ctx context.Context, before time.Time) ([]string, error)

	// DeleteByJTI 删除记录，记录不存在时不报错
	DeleteByJTI(ctx context.Context, jti string) error
}
