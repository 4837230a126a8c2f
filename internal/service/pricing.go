package service

import (
	"math"
	"strings"

	"github.com/google/uuid"
)

// DefaultCurrency используется, если валюта не задана в конфигурации.
const DefaultCurrency = "INR"

// FinalPriceCents возвращает цену курса со скидкой в минимальных единицах валюты.
// Скидка задаётся в процентах и ограничивается диапазоном 0..100, половина единицы округляется вверх.
// Цена раскладывается на сотни и остаток, поэтому произведение не переполняет int64.
func FinalPriceCents(priceCents int64, discount int) int64 {
	if priceCents <= 0 {
		return 0
	}
	keep := int64(100 - min(max(discount, 0), 100))
	hundreds, rest := priceCents/100, priceCents%100
	return hundreds*keep + (rest*keep+50)/100
}

// ToCents переводит сумму в основных единицах валюты в минимальные.
func ToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FromCents переводит сумму в минимальных единицах валюты в основные.
func FromCents(cents int64) float64 {
	return float64(cents) / 100
}

// receiptFor формирует номер квитанции для шлюза: не длиннее 40 символов.
func receiptFor(purchaseID uuid.UUID) string {
	return "rcpt_" + strings.ReplaceAll(purchaseID.String(), "-", "")
}
