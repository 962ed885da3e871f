// Package application provides application-layer services that are not part of
// the OAuth request path.
package application

import (
	"context"
	"fmt"
	"os"

	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/internal/domain/service"
	"github.com/turtacn/authz/internal/infrastructure/crypto"
	"github.com/turtacn/authz/pkg/constants"
	"github.com/turtacn/authz/pkg/logger"
)

// KeyRotator is the key lifecycle surface of crypto.KeyManager.
// KeyRotator 是 crypto.KeyManager 的密钥生命周期接口。
type KeyRotator interface {
	SigningKey() *crypto.SigningKey
	Rotate(ctx context.Context) (*crypto.SigningKey, error)
}

// KeyRotationService rotates the token signing key and records the event.
// KeyRotationService 负责轮换令牌签名密钥并记录事件。
type KeyRotationService struct {
	keys   KeyRotator
	audit  service.AuditService
	logger logger.Logger
}

// NewKeyRotationService creates the service. audit may be nil.
// NewKeyRotationService 创建 KeyRotationService 实例。
func NewKeyRotationService(keys KeyRotator, audit service.AuditService, log logger.Logger) *KeyRotationService {
	return &KeyRotationService{keys: keys, audit: audit, logger: log.WithComponent("KeyRotationService")}
}

// RotateSigningKey reloads the signing key from its source and returns the active kid.
// The previous key keeps verifying tokens for the key manager's grace period.
// RotateSigningKey 从密钥源重新加载签名密钥并返回当前 kid。
func (s *KeyRotationService) RotateSigningKey(ctx context.Context) (string, error) {
	previous := s.keys.SigningKey().ID
	next, err := s.keys.Rotate(ctx)
	if err != nil {
		s.logger.Error(ctx, "signing key rotation failed", err, logger.String("kid", previous))
		return "", fmt.Errorf("rotate signing key: %w", err)
	}
	if next.ID == previous {
		s.logger.Info(ctx, "signing key unchanged", logger.String("kid", next.ID))
		return next.ID, nil
	}

	if s.audit != nil {
		event := models.NewAuditEvent(constants.EventTypeSigningKeyRotated, constants.ServiceName, true).
			WithMeta("previous_kid", previous).
			WithMeta("kid", next.ID)
		if err := s.audit.LogEvent(ctx, event); err != nil {
			s.logger.Error(ctx, "failed to log key rotation event", err, logger.String("kid", next.ID))
		}
	}
	return next.ID, nil
}

// RotateOnSignal rotates once per value received on signals until ctx is done.
// RotateOnSignal 每收到一次信号即轮换一次密钥，直到 ctx 结束。
func (s *KeyRotationService) RotateOnSignal(ctx context.Context, signals <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-signals:
			s.logger.Info(ctx, "rotating signing key", logger.String("signal", sig.String()))
			_, _ = s.RotateSigningKey(ctx)
		}
	}
}
