package payment

import (
	"net/url"

	"github.com/Freeeeeet/lesson_booking/internal/model"
)

// CheckoutForm поля, которые клиент отправляет на страницу оплаты провайдера
type CheckoutForm struct {
	GatewayURL string            `json:"gateway_url"`
	Fields     map[string]string `json:"fields"`
}

// BuildCheckoutForm подписывает параметры заказа для страницы оплаты.
// Провайдер возвращает выбранные слоты в callback'е, поэтому они входят в подпись.
// Подпись формы отличается от подписи callback'а, форму нельзя выдать за уведомление об оплате.
func (s *Signer) BuildCheckoutForm(gatewayURL, callbackURL string, p *model.PackagePayment) CheckoutForm {
	values := url.Values{}
	values.Set(FieldOrderID, p.OrderID)
	values.Set(FieldAmount, p.TotalAmount.StringFixed(2))
	values.Set(FieldSlots, FormatSlotIDs(p.SelectedSlots))
	values.Set(FieldOkURL, callbackURL)
	values.Set(FieldFailURL, callbackURL)
	values.Set(FieldHash, s.sign(purposeCheckout, values))

	fields := make(map[string]string, len(values))
	for k := range values {
		fields[k] = values.Get(k)
	}

	return CheckoutForm{GatewayURL: gatewayURL, Fields: fields}
}
