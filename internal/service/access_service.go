package service

import (
	"context"
	"log/slog"

	"github.com/cwrk-planet/ijara-chat/internal/domain"
	"github.com/cwrk-planet/ijara-chat/internal/metrics"
	"github.com/cwrk-planet/ijara-chat/pkg/logger"
)

type AccessService struct {
	grants GrantReader
}

func NewAccessService(grants GrantReader) *AccessService {
	return &AccessService{grants: grants}
}

// Check решает, может ли requesterID писать по объекту propertyID.
// Владелец проходит всегда, остальные - только с заявкой в статусе pending.
// Любая ошибка поиска заявки - отказ.
func (s *AccessService) Check(ctx context.Context, propertyID, requesterID, landlordID string) domain.AccessDecision {
	d := s.decide(ctx, propertyID, requesterID, landlordID)
	metrics.RecordAccessDecision(d.String())
	return d
}

func (s *AccessService) decide(ctx context.Context, propertyID, requesterID, landlordID string) domain.AccessDecision {
	if propertyID == "" || requesterID == "" {
		return domain.AccessDenied
	}
	if requesterID == landlordID {
		return domain.AccessGranted
	}

	grant, err := s.grants.GetGrant(ctx, propertyID, requesterID)
	if err != nil {
		logger.FromContext(ctx).Warn("access grant lookup failed",
			slog.String("property_id", propertyID),
			slog.String("user_id", requesterID),
			logger.Err(err),
		)
		return domain.AccessDenied
	}
	if grant == nil || grant.Status != domain.GrantStatusPending {
		return domain.AccessDenied
	}
	return domain.AccessGranted
}
