package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mmeshcher/coursemart/internal/gateway"
	"github.com/mmeshcher/coursemart/internal/model"
	"github.com/mmeshcher/coursemart/internal/repository"
)

// HandleGatewayEvent обрабатывает вебхук платёжного шлюза. Подпись проверяется
// по сырому телу запроса. deliveryID может быть пустым.
func (s *Service) HandleGatewayEvent(ctx context.Context, body []byte, signature, deliveryID string) error {
	if s.payments.WebhookSecret == "" || !gateway.VerifyWebhookSignature(s.payments.WebhookSecret, body, signature) {
		return ErrSignatureInvalid
	}

	claimed := false
	if s.deduper != nil && deliveryID != "" {
		fresh, err := s.deduper.Claim(ctx, deliveryID)
		switch {
		case err != nil:
			s.logger.Warn("claim webhook delivery failed", zap.Error(err), zap.String("delivery_id", deliveryID))
		case !fresh:
			s.logger.Info("skip duplicate webhook delivery", zap.String("delivery_id", deliveryID))
			return nil
		default:
			claimed = true
		}
	}

	err := s.processGatewayEvent(ctx, body)
	if err != nil && claimed {
		if relErr := s.deduper.Release(ctx, deliveryID); relErr != nil {
			s.logger.Warn("release webhook delivery failed", zap.Error(relErr), zap.String("delivery_id", deliveryID))
		}
	}
	return err
}

func (s *Service) processGatewayEvent(ctx context.Context, body []byte) error {
	ev, err := gateway.ParseEvent(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	switch ev.Event {
	case gateway.EventPaymentCaptured:
		return s.capturePayment(ctx, ev.Payment())
	case gateway.EventPaymentFailed:
		return s.failPayment(ctx, ev.Payment())
	default:
		s.logger.Debug("ignore gateway event", zap.String("event", ev.Event))
		return nil
	}
}

func (s *Service) capturePayment(ctx context.Context, payment gateway.Payment) error {
	if payment.OrderID == "" {
		return fmt.Errorf("%w: captured payment without order id", ErrInvalidInput)
	}

	var res *Settlement
	err := s.repo.InTx(ctx, func(tx repository.LedgerTx) error {
		p, err := tx.GetPurchaseByOrderForUpdate(ctx, payment.OrderID)
		if err != nil {
			return err
		}
		res, err = settleCaptured(ctx, tx, p, payment.ID, "")
		return err
	})
	switch {
	case isPurchaseNotFound(err):
		s.logger.Warn("captured payment for unknown order",
			zap.String("order_id", payment.OrderID),
			zap.String("payment_id", payment.ID),
		)
		return nil
	case errors.Is(err, ErrPurchaseClosed):
		s.logger.Error("captured payment for failed purchase, manual review required",
			zap.String("order_id", payment.OrderID),
			zap.String("payment_id", payment.ID),
		)
		return nil
	case err != nil:
		return err
	}

	s.logger.Info("payment captured",
		zap.String("order_id", payment.OrderID),
		zap.String("purchase_id", res.PurchaseID.String()),
		zap.Bool("status_changed", res.Changed),
		zap.Bool("enrolled", res.Enrolled),
	)

	if res.Enrolled {
		s.publishEnrollment(ctx, model.Enrollment{
			UserID:      res.UserID,
			CourseID:    res.CourseID,
			PurchaseID:  res.PurchaseID,
			AmountCents: res.AmountCents,
			Source:      model.EnrollmentSourceWebhook,
		})
	}
	return nil
}

func (s *Service) failPayment(ctx context.Context, payment gateway.Payment) error {
	if payment.OrderID == "" {
		return fmt.Errorf("%w: failed payment without order id", ErrInvalidInput)
	}

	var changed bool
	err := s.repo.InTx(ctx, func(tx repository.LedgerTx) error {
		p, err := tx.GetPurchaseByOrderForUpdate(ctx, payment.OrderID)
		if err != nil {
			return err
		}
		changed, err = tx.FailPurchase(ctx, p.ID)
		return err
	})
	if isPurchaseNotFound(err) {
		s.logger.Warn("failed payment for unknown order", zap.String("order_id", payment.OrderID))
		return nil
	}
	if err != nil {
		return err
	}

	s.logger.Info("payment failed",
		zap.String("order_id", payment.OrderID),
		zap.Bool("status_changed", changed),
	)
	return nil
}
