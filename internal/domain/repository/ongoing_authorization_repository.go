package repository

import (
	"context"

	"github.com/turtacn/authz/internal/domain/models"
)

// OngoingAuthorizationRepository 定义授权码记录的持久化契约
// 记录只写一次、只删除一次，不提供更新操作
// 实现类：internal/infrastructure/redis/ongoing_authorization_store.go
type OngoingAuthorizationRepository interface {
	// Save 保存新的授权码记录
	Save(ctx context.Context, oa *models.OngoingAuthorization) error

	// FindByCode 根据授权码查询记录
	// 返回：
	//   - *models.OngoingAuthorization: 不存在时为 nil
	//   - error: 仅在存储访问失败时返回
	FindByCode(ctx context.Context, code string) (*models.OngoingAuthorization, error)

	// Delete 删除授权码记录
	// 返回：
	//   - bool: 本次调用是否真正删除了记录；并发兑换时只有一个调用返回 true
	//   - error: 存储访问失败
	Delete(ctx context.Context, code string) (bool, error)
}
