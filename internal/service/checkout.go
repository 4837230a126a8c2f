package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/coursemart/internal/gateway"
	"github.com/mmeshcher/coursemart/internal/model"
	"github.com/mmeshcher/coursemart/internal/repository"
)

// CheckoutResult описывает результат оформления покупки.
// Для бесплатного курса Free равен true и заказ в шлюзе не создаётся.
type CheckoutResult struct {
	Free        bool
	PurchaseID  uuid.UUID
	OrderID     string
	AmountCents int64
	Currency    string
	CourseName  string
}

// Confirmation содержит данные синхронного подтверждения оплаты, переданные клиентом.
type Confirmation struct {
	// UserID задаётся, если подтверждение пришло от аутентифицированного пользователя.
	UserID     int64
	OrderID    string
	PaymentID  string
	Signature  string
	PurchaseID string
}

// Settlement описывает итог применения подтверждения оплаты к записи журнала.
type Settlement struct {
	PurchaseID  uuid.UUID
	UserID      int64
	CourseID    int64
	AmountCents int64
	Status      model.PaymentStatus
	// Changed равен true, если вызов перевёл запись из pending в completed.
	Changed bool
	// Enrolled равен true, если вызов добавил запись на курс.
	Enrolled bool
}

// InitiateCheckout оформляет покупку курса пользователем.
func (s *Service) InitiateCheckout(ctx context.Context, userID, courseID int64) (*CheckoutResult, error) {
	if userID <= 0 || courseID <= 0 {
		return nil, fmt.Errorf("%w: user and course are required", ErrInvalidInput)
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	course, err := s.repo.GetCourseByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !course.IsPublished {
		return nil, repository.ErrCourseNotFound
	}
	if slices.Contains(user.EnrolledCourses, course.ID) {
		return nil, ErrAlreadyEnrolled
	}

	amount := FinalPriceCents(course.PriceCents, course.Discount)
	if amount == 0 {
		return s.enrollFree(ctx, user.ID, course)
	}

	purchase, created, err := s.repo.CreatePendingPurchase(ctx, &model.Purchase{
		ID:          uuid.New(),
		CourseID:    course.ID,
		UserID:      user.ID,
		AmountCents: amount,
		Currency:    s.payments.Currency,
		Status:      model.PaymentStatusPending,
	})
	if err != nil {
		return nil, err
	}

	result := &CheckoutResult{
		PurchaseID:  purchase.ID,
		AmountCents: purchase.AmountCents,
		Currency:    purchase.Currency,
		CourseName:  course.Title,
	}

	if !created && purchase.GatewayOrderID != "" {
		s.logger.Info("reuse pending purchase",
			zap.String("purchase_id", purchase.ID.String()),
			zap.String("order_id", purchase.GatewayOrderID),
		)
		result.OrderID = purchase.GatewayOrderID
		return result, nil
	}

	order, err := s.gateway.CreateOrder(ctx, gateway.OrderRequest{
		Amount:   purchase.AmountCents,
		Currency: purchase.Currency,
		Receipt:  receiptFor(purchase.ID),
		Notes: map[string]string{
			"courseId":   strconv.FormatInt(course.ID, 10),
			"userId":     strconv.FormatInt(user.ID, 10),
			"purchaseId": purchase.ID.String(),
			"courseName": course.Title,
		},
	})
	if err != nil {
		s.logger.Warn("create gateway order failed",
			zap.Error(err),
			zap.String("purchase_id", purchase.ID.String()),
		)
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	orderID, err := s.repo.AttachGatewayOrder(ctx, purchase.ID, order.ID)
	if err != nil {
		return nil, err
	}
	if orderID != order.ID {
		s.logger.Info("gateway order already attached by concurrent checkout",
			zap.String("purchase_id", purchase.ID.String()),
			zap.String("order_id", orderID),
			zap.String("orphan_order_id", order.ID),
		)
	}

	result.OrderID = orderID
	return result, nil
}

func (s *Service) enrollFree(ctx context.Context, userID int64, course *model.Course) (*CheckoutResult, error) {
	purchase := &model.Purchase{
		ID:       uuid.New(),
		CourseID: course.ID,
		UserID:   userID,
		Currency: s.payments.Currency,
		Status:   model.PaymentStatusCompleted,
	}

	err := s.repo.InTx(ctx, func(tx repository.LedgerTx) error {
		added, err := tx.Enroll(ctx, userID, course.ID)
		if err != nil {
			return err
		}
		if !added {
			return ErrAlreadyEnrolled
		}
		return tx.InsertPurchase(ctx, purchase)
	})
	if err != nil {
		return nil, err
	}

	s.publishEnrollment(ctx, model.Enrollment{
		UserID:     userID,
		CourseID:   course.ID,
		PurchaseID: purchase.ID,
		Source:     model.EnrollmentSourceFree,
	})

	return &CheckoutResult{
		Free:       true,
		PurchaseID: purchase.ID,
		Currency:   purchase.Currency,
		CourseName: course.Title,
	}, nil
}

// ConfirmPayment применяет синхронное подтверждение оплаты. Повторный вызов
// с теми же данными ничего не меняет и не считается ошибкой.
func (s *Service) ConfirmPayment(ctx context.Context, c Confirmation) (*Settlement, error) {
	if c.OrderID == "" || c.PaymentID == "" || c.Signature == "" || c.PurchaseID == "" {
		return nil, fmt.Errorf("%w: orderId, paymentId, signature and purchaseId are required", ErrInvalidInput)
	}
	purchaseID, err := uuid.Parse(c.PurchaseID)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed purchaseId", ErrInvalidInput)
	}

	if !gateway.VerifyPaymentSignature(s.payments.KeySecret, c.OrderID, c.PaymentID, c.Signature) {
		return nil, ErrSignatureInvalid
	}

	var res *Settlement
	err = s.repo.InTx(ctx, func(tx repository.LedgerTx) error {
		p, err := tx.GetPurchaseForUpdate(ctx, purchaseID)
		if err != nil {
			return err
		}
		// Подпись проверена для заказа из запроса, запись должна относиться к нему же.
		if p.GatewayOrderID != c.OrderID {
			return ErrSignatureInvalid
		}
		if c.UserID != 0 && c.UserID != p.UserID {
			return ErrForbidden
		}

		res, err = settleCaptured(ctx, tx, p, c.PaymentID, c.Signature)
		return err
	})
	if err != nil {
		return nil, err
	}

	if res.Enrolled {
		s.publishEnrollment(ctx, model.Enrollment{
			UserID:      res.UserID,
			CourseID:    res.CourseID,
			PurchaseID:  res.PurchaseID,
			AmountCents: res.AmountCents,
			Source:      model.EnrollmentSourceConfirm,
		})
	}

	return res, nil
}

// settleCaptured переводит заблокированную запись в completed и выдаёт запись на курс.
// Запись в статусе completed не меняется, но запись на курс восстанавливается при необходимости.
func settleCaptured(ctx context.Context, tx repository.LedgerTx, p *model.Purchase, paymentID, signature string) (*Settlement, error) {
	res := &Settlement{
		PurchaseID:  p.ID,
		UserID:      p.UserID,
		CourseID:    p.CourseID,
		AmountCents: p.AmountCents,
		Status:      p.Status,
	}

	ok, err := tx.UserExists(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	ok, err = tx.CourseExists(ctx, p.CourseID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, repository.ErrCourseNotFound
	}

	switch p.Status {
	case model.PaymentStatusFailed:
		return res, ErrPurchaseClosed
	case model.PaymentStatusPending:
		changed, err := tx.CompletePurchase(ctx, p.ID, paymentID, signature)
		if err != nil {
			return nil, err
		}
		if !changed {
			return nil, fmt.Errorf("complete purchase %s: status changed under lock", p.ID)
		}
		res.Status = model.PaymentStatusCompleted
		res.Changed = true
	case model.PaymentStatusCompleted:
	default:
		return nil, fmt.Errorf("purchase %s: unknown status %q", p.ID, p.Status)
	}

	added, err := tx.Enroll(ctx, p.UserID, p.CourseID)
	if err != nil {
		return nil, err
	}
	res.Enrolled = added

	return res, nil
}

func isPurchaseNotFound(err error) bool {
	return errors.Is(err, repository.ErrPurchaseNotFound)
}
