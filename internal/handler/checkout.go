package handler

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/coursemart/internal/gateway"
	"github.com/mmeshcher/coursemart/internal/service"
)

type purchaseRequest struct {
	CourseID int64 `json:"courseId" validate:"required,gt=0"`
}

type orderView struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type purchaseResponse struct {
	Success    bool       `json:"success"`
	Free       bool       `json:"free"`
	Message    string     `json:"message,omitempty"`
	PurchaseID string     `json:"purchaseId"`
	CourseName string     `json:"courseName"`
	Order      *orderView `json:"order,omitempty"`
	Key        string     `json:"key,omitempty"`
}

// Имена полей совпадают с ответом формы оплаты шлюза.
type verifyRequest struct {
	OrderID    string `json:"razorpay_order_id" validate:"required,gatewayid"`
	PaymentID  string `json:"razorpay_payment_id" validate:"required,gatewayid"`
	Signature  string `json:"razorpay_signature" validate:"required,max=128"`
	PurchaseID string `json:"purchaseId" validate:"required,uuid"`
}

// Purchase оформляет покупку курса текущим пользователем.
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "not authorized, login again")
		return
	}

	var req purchaseRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, "purchase course", err)
		return
	}

	res, err := h.service.InitiateCheckout(r.Context(), actor.UserID, req.CourseID)
	if err != nil {
		h.writeError(w, "purchase course", err)
		return
	}

	resp := purchaseResponse{
		Success:    true,
		Free:       res.Free,
		PurchaseID: res.PurchaseID.String(),
		CourseName: res.CourseName,
	}
	if res.Free {
		resp.Message = "enrolled successfully"
	} else {
		resp.Order = &orderView{ID: res.OrderID, Amount: res.AmountCents, Currency: res.Currency}
		resp.Key = h.gatewayKeyID
	}

	writeJSON(w, http.StatusOK, resp)
}

// VerifyPayment применяет подтверждение оплаты, переданное клиентом.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "not authorized, login again")
		return
	}

	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, "verify payment", err)
		return
	}

	_, err := h.service.ConfirmPayment(r.Context(), service.Confirmation{
		UserID:     actor.UserID,
		OrderID:    req.OrderID,
		PaymentID:  req.PaymentID,
		Signature:  req.Signature,
		PurchaseID: req.PurchaseID,
	})
	if err != nil {
		if errors.Is(err, service.ErrSignatureInvalid) {
			h.logger.Warn("payment signature rejected",
				zap.String("order_id", req.OrderID),
				zap.String("purchase_id", req.PurchaseID),
			)
		}
		h.writeError(w, "verify payment", err)
		return
	}

	writeMessage(w, http.StatusOK, "payment verified, enrolled successfully")
}

// GatewayWebhook принимает события платёжного шлюза. Тело читается без изменений,
// так как подпись вычисляется по сырым байтам. Ошибки обработки пишутся в лог,
// а шлюзу возвращается успешный ответ, чтобы он не повторял доставку.
func (h *Handler) GatewayWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		h.logger.Warn("read webhook body error", zap.Error(err))
		writeMessage(w, http.StatusBadRequest, "cannot read request body")
		return
	}
	// Обрезанное тело не пройдёт проверку подписи, поэтому отвечаем отдельным кодом.
	if len(body) > maxBodySize {
		h.logger.Warn("webhook body too large", zap.Int64("content_length", r.ContentLength))
		writeMessage(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	err = h.service.HandleGatewayEvent(r.Context(),
		body,
		r.Header.Get(gateway.HeaderSignature),
		r.Header.Get(gateway.HeaderEventID),
	)
	switch {
	case errors.Is(err, service.ErrSignatureInvalid):
		h.logger.Warn("webhook signature rejected", zap.String("remote_addr", r.RemoteAddr))
		writeMessage(w, http.StatusBadRequest, "invalid signature")
		return
	case err != nil:
		h.logger.Error("process webhook error", zap.Error(err))
	}

	writeJSON(w, http.StatusOK, struct {
		Success  bool `json:"success"`
		Received bool `json:"received"`
	}{Success: true, Received: true})
}
