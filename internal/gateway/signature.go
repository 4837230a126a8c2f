package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign возвращает hex-представление HMAC-SHA256 от data на ключе secret.
func Sign(secret string, data []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignPayment подписывает пару заказ/платёж так же, как это делает шлюз
// в синхронном ответе клиенту.
func SignPayment(secret, orderID, paymentID string) string {
	return Sign(secret, []byte(orderID+"|"+paymentID))
}

// VerifyPaymentSignature проверяет подпись синхронного подтверждения оплаты.
func VerifyPaymentSignature(secret, orderID, paymentID, signature string) bool {
	return verify(SignPayment(secret, orderID, paymentID), signature)
}

// VerifyWebhookSignature проверяет подпись вебхука по сырому телу запроса.
func VerifyWebhookSignature(secret string, body []byte, signature string) bool {
	return verify(Sign(secret, body), signature)
}

func verify(expected, got string) bool {
	if got == "" {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(got))
}
