package repository

import (
	"context"

	"github.com/turtacn/authz/internal/domain/models"
)

// UserRepository 定义资源所有者账户的持久化契约
// 实现类：internal/infrastructure/persistence/postgres/user_repo_impl.go
type UserRepository interface {
	// FindByUsername 根据登录名查询，不存在时返回 nil, nil
	FindByUsername(ctx context.Context, username string) (*models.User, error)

	// FindByID 根据用户 ID 查询，不存在时返回 nil, nil
	FindByID(ctx context.Context, id string) (*models.User, error)

	// Save 新增或覆盖用户
	Save(ctx context.Context, user *models.User) error
}

