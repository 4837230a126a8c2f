package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ReconcileEnrollments восстанавливает записи на курсы по завершённым покупкам.
func (s *Service) ReconcileEnrollments(ctx context.Context) (int64, error) {
	repaired, err := s.repo.ReconcileEnrollments(ctx)
	if err != nil {
		return 0, err
	}
	if repaired > 0 {
		s.logger.Warn("enrollments repaired from completed purchases", zap.Int64("count", repaired))
	}
	return repaired, nil
}

// RunReconciliation периодически сверяет записи на курсы с журналом покупок
// до отмены ctx. Неположительный interval отключает сверку.
func (s *Service) RunReconciliation(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.ReconcileEnrollments(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("reconcile enrollments failed", zap.Error(err))
			}
		}
	}
}
