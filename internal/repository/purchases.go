package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/coursemart/internal/model"
)

// LedgerTx описывает операции над журналом покупок и записями на курсы,
// выполняемые внутри одной транзакции.
type LedgerTx interface {
	// GetPurchaseForUpdate блокирует и возвращает запись журнала по идентификатору.
	GetPurchaseForUpdate(ctx context.Context, id uuid.UUID) (*model.Purchase, error)
	// GetPurchaseByOrderForUpdate блокирует и возвращает запись журнала по идентификатору заказа шлюза.
	GetPurchaseByOrderForUpdate(ctx context.Context, orderID string) (*model.Purchase, error)
	// InsertPurchase добавляет запись журнала.
	InsertPurchase(ctx context.Context, p *model.Purchase) error
	// CompletePurchase переводит запись из pending в completed. Возвращает false, если статус был другим.
	CompletePurchase(ctx context.Context, id uuid.UUID, paymentID, signature string) (bool, error)
	// FailPurchase переводит запись из pending в failed. Возвращает false, если статус был другим.
	FailPurchase(ctx context.Context, id uuid.UUID) (bool, error)
	UserExists(ctx context.Context, id int64) (bool, error)
	CourseExists(ctx context.Context, id int64) (bool, error)
	// Enroll записывает пользователя на курс, если он ещё не записан. Возвращает true, если запись добавлена.
	Enroll(ctx context.Context, userID, courseID int64) (bool, error)
}

const purchaseColumns = `id, course_id, user_id, amount_cents, currency, status,
	COALESCE(gateway_order_id, ''), COALESCE(gateway_payment_id, ''), COALESCE(gateway_signature, ''),
	created_at, updated_at`

func scanPurchase(row pgx.Row) (*model.Purchase, error) {
	var (
		p      model.Purchase
		status string
	)
	err := row.Scan(&p.ID, &p.CourseID, &p.UserID, &p.AmountCents, &p.Currency, &status,
		&p.GatewayOrderID, &p.GatewayPaymentID, &p.GatewaySignature, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPurchaseNotFound
		}
		return nil, fmt.Errorf("scan purchase: %w", err)
	}
	p.Status = model.PaymentStatus(status)
	return &p, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// pgLedger реализует LedgerTx поверх транзакции pgx.
type pgLedger struct {
	tx pgx.Tx
}

func (l *pgLedger) GetPurchaseForUpdate(ctx context.Context, id uuid.UUID) (*model.Purchase, error) {
	return scanPurchase(l.tx.QueryRow(ctx,
		`SELECT `+purchaseColumns+` FROM purchases WHERE id = $1 FOR UPDATE`,
		id,
	))
}

func (l *pgLedger) GetPurchaseByOrderForUpdate(ctx context.Context, orderID string) (*model.Purchase, error) {
	return scanPurchase(l.tx.QueryRow(ctx,
		`SELECT `+purchaseColumns+` FROM purchases WHERE gateway_order_id = $1 FOR UPDATE`,
		orderID,
	))
}

func (l *pgLedger) InsertPurchase(ctx context.Context, p *model.Purchase) error {
	_, err := l.tx.Exec(ctx,
		`INSERT INTO purchases (id, course_id, user_id, amount_cents, currency, status, gateway_order_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.CourseID, p.UserID, p.AmountCents, p.Currency, string(p.Status), nullIfEmpty(p.GatewayOrderID),
	)
	if err != nil {
		return fmt.Errorf("insert purchase: %w", err)
	}
	return nil
}

func (l *pgLedger) CompletePurchase(ctx context.Context, id uuid.UUID, paymentID, signature string) (bool, error) {
	tag, err := l.tx.Exec(ctx,
		`UPDATE purchases
		 SET status = $2, gateway_payment_id = $3, gateway_signature = COALESCE($4, gateway_signature), updated_at = now()
		 WHERE id = $1 AND status = $5`,
		id, string(model.PaymentStatusCompleted), paymentID, nullIfEmpty(signature), string(model.PaymentStatusPending),
	)
	if err != nil {
		return false, fmt.Errorf("complete purchase: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (l *pgLedger) FailPurchase(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := l.tx.Exec(ctx,
		`UPDATE purchases SET status = $2, updated_at = now() WHERE id = $1 AND status = $3`,
		id, string(model.PaymentStatusFailed), string(model.PaymentStatusPending),
	)
	if err != nil {
		return false, fmt.Errorf("fail purchase: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (l *pgLedger) UserExists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	if err := l.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	return ok, nil
}

func (l *pgLedger) CourseExists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	if err := l.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM courses WHERE id = $1)`, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("check course: %w", err)
	}
	return ok, nil
}

func (l *pgLedger) Enroll(ctx context.Context, userID, courseID int64) (bool, error) {
	tag, err := l.tx.Exec(ctx,
		`INSERT INTO enrollments (user_id, course_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, courseID,
	)
	if err != nil {
		return false, fmt.Errorf("insert enrollment: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// CreatePendingPurchase добавляет запись в статусе pending. Если у пары пользователь/курс
// уже есть незавершённая запись, возвращается она, а второй результат равен false.
func (r *PostgresRepository) CreatePendingPurchase(ctx context.Context, p *model.Purchase) (*model.Purchase, bool, error) {
	for attempt := 0; attempt < 2; attempt++ {
		tag, err := r.pool.Exec(ctx,
			`INSERT INTO purchases (id, course_id, user_id, amount_cents, currency, status)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (user_id, course_id) WHERE status = 'pending' DO NOTHING`,
			p.ID, p.CourseID, p.UserID, p.AmountCents, p.Currency, string(model.PaymentStatusPending),
		)
		if err != nil {
			return nil, false, fmt.Errorf("insert pending purchase: %w", err)
		}
		if tag.RowsAffected() == 1 {
			created := *p
			created.Status = model.PaymentStatusPending
			return &created, true, nil
		}

		existing, err := scanPurchase(r.pool.QueryRow(ctx,
			`SELECT `+purchaseColumns+` FROM purchases WHERE user_id = $1 AND course_id = $2 AND status = $3`,
			p.UserID, p.CourseID, string(model.PaymentStatusPending),
		))
		if errors.Is(err, ErrPurchaseNotFound) {
			// Незавершённая запись успела перейти в финальный статус, пробуем ещё раз.
			continue
		}
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	return nil, false, fmt.Errorf("insert pending purchase: conflicting purchase changed concurrently")
}

// AttachGatewayOrder сохраняет идентификатор заказа шлюза, если он ещё не задан,
// и возвращает действующий идентификатор.
func (r *PostgresRepository) AttachGatewayOrder(ctx context.Context, purchaseID uuid.UUID, orderID string) (string, error) {
	var current string
	err := r.pool.QueryRow(ctx,
		`UPDATE purchases SET gateway_order_id = $2, updated_at = now()
		 WHERE id = $1 AND gateway_order_id IS NULL
		 RETURNING gateway_order_id`,
		purchaseID, orderID,
	).Scan(&current)
	if err == nil {
		return current, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("attach gateway order: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COALESCE(gateway_order_id, '') FROM purchases WHERE id = $1`,
		purchaseID,
	).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrPurchaseNotFound
		}
		return "", fmt.Errorf("select gateway order: %w", err)
	}
	return current, nil
}

// ReconcileEnrollments восстанавливает записи на курсы по завершённым покупкам
// и возвращает число добавленных записей.
func (r *PostgresRepository) ReconcileEnrollments(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO enrollments (user_id, course_id)
		 SELECT DISTINCT p.user_id, p.course_id
		 FROM purchases p
		 JOIN courses c ON c.id = p.course_id
		 JOIN users u ON u.id = p.user_id
		 WHERE p.status = $1
		 ON CONFLICT DO NOTHING`,
		string(model.PaymentStatusCompleted),
	)
	if err != nil {
		return 0, fmt.Errorf("reconcile enrollments: %w", err)
	}
	return tag.RowsAffected(), nil
}
