// Package payment проверяет подписи платёжного провайдера и готовит форму checkout.
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/Freeeeeet/lesson_booking/internal/model"
)

// Поля callback'а провайдера
const (
	FieldOrderID      = "oid"
	FieldResponseCode = "response_code"
	FieldSlots        = "slots"
	FieldAmount       = "amount"
	FieldOkURL        = "ok_url"
	FieldFailURL      = "fail_url"
	FieldHash         = "hash"

	// ResponseApproved код успешной оплаты
	ResponseApproved = "00"
)

// Callback проверенные данные уведомления об оплате
type Callback struct {
	OrderID      string
	ResponseCode string
	SlotIDs      []int64 // выбор слотов, если провайдер вернул его в callback
}

// Approved проверяет, что провайдер подтвердил оплату
func (c *Callback) Approved() bool {
	return c.ResponseCode == ResponseApproved
}

// Signer подписывает и проверяет поля HMAC-SHA256 общим секретом магазина
type Signer struct {
	secret []byte
}

// NewSigner создаёт подписчика
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Назначение подписи входит в MAC: форма checkout не проходит проверку как callback
const (
	purposeCallback = "callback"
	purposeCheckout = "checkout"
)

// Sign считает подпись callback'а по всем полям, кроме hash, в порядке имён
func (s *Signer) Sign(fields url.Values) string {
	return s.sign(purposeCallback, fields)
}

func (s *Signer) sign(purpose string, fields url.Values) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == FieldHash {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(purpose)
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strings.Join(fields[k], ","))
	}

	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify проверяет подпись и только после этого разбирает поля
func (s *Signer) Verify(fields url.Values) (*Callback, error) {
	got := fields.Get(FieldHash)
	if got == "" {
		return nil, fmt.Errorf("missing hash: %w", model.ErrSignatureInvalid)
	}

	want := s.Sign(fields)
	if !hmac.Equal([]byte(got), []byte(want)) {
		return nil, fmt.Errorf("hash mismatch: %w", model.ErrSignatureInvalid)
	}

	cb := &Callback{
		OrderID:      strings.TrimSpace(fields.Get(FieldOrderID)),
		ResponseCode: strings.TrimSpace(fields.Get(FieldResponseCode)),
	}
	if cb.OrderID == "" {
		return nil, fmt.Errorf("missing order id: %w", model.ErrSignatureInvalid)
	}
	if cb.ResponseCode == "" {
		return nil, fmt.Errorf("missing response code: %w", model.ErrSignatureInvalid)
	}

	slotIDs, err := ParseSlotIDs(fields.Get(FieldSlots))
	if err != nil {
		return nil, fmt.Errorf("parse slots: %w", model.ErrSignatureInvalid)
	}
	cb.SlotIDs = slotIDs

	return cb, nil
}

// ParseSlotIDs разбирает список вида "12,15,19"
func ParseSlotIDs(raw string) ([]int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// FormatSlotIDs собирает список слотов для поля slots
func FormatSlotIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
