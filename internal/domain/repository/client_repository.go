// Package repository 定义领域仓储接口
// 仓储接口遵循 DDD 原则，定义领域对象的持久化契约
package repository

import (
	"context"

	"github.com/turtacn/authz/internal/domain/models"
)

// ClientRegistry 定义已注册客户端的只读查询契约
// 实现类：internal/infrastructure/persistence/postgres/client_registry_impl.go
type ClientRegistry interface {
	// FindByClientID 根据 client_id 查询客户端
	// 返回：
	//   - *models.OAuthClient: 未注册时为 nil
	//   - error: 仅在存储访问失败时返回
	FindByClientID(ctx context.Context, clientID string) (*models.OAuthClient, error)

	// FindByAudience 根据 audience 查询资源服务客户端
	// 返回：
	//   - *models.OAuthClient: 未注册时为 nil
	//   - error: 仅在存储访问失败时返回
	FindByAudience(ctx context.Context, audience string) (*models.OAuthClient, error)
}

// ClientRepository 扩展 ClientRegistry，提供管理端写入能力（authz-admin 使用）
type ClientRepository interface {
	ClientRegistry

	// Save 新增或覆盖客户端注册信息
	Save(ctx context.Context, client *models.OAuthClient) error
}
