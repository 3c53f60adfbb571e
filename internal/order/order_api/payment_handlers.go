package order_api

import (
	"fmt"
	"io"
	"net/http"

	"tixly-ticketing/internal/apperr"
	"tixly-ticketing/internal/models"
	"tixly-ticketing/internal/utils"
)

const maxWebhookBytes = 64 << 10

// SubmitPayment charges a pending order. Charges that settle later answer
// 202 with the order still processing.
func (h *Handler) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	o, err := h.ownedOrder(r)
	if err != nil {
		h.fail(w, "SubmitPayment", err)
		return
	}

	var details models.PaymentDetails
	if err := utils.DecodeJSON(r, &details); err != nil {
		h.fail(w, "SubmitPayment", err)
		return
	}

	o, err = h.OrderService.SubmitPayment(r.Context(), o.ID, details)
	if err != nil {
		h.fail(w, "SubmitPayment", err)
		return
	}

	status := http.StatusOK
	if o.Status == models.OrderStatusProcessing {
		status = http.StatusAccepted
	}
	utils.WriteSuccess(w, status, o)
}

// PaymentWebhook settles asynchronous charges. Only system errors answer
// non-2xx so the processor retries them; anything else is acknowledged.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		h.fail(w, "PaymentWebhook", apperr.Validation("Could not read webhook body"))
		return
	}

	ev, err := h.Webhooks.ParseWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.Logger.LogSecurity("WEBHOOK_REJECTED", err.Error())
		h.fail(w, "PaymentWebhook", apperr.Validation("Invalid webhook"))
		return
	}
	if ev == nil {
		utils.WriteSuccess(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	if _, err := h.OrderService.ConfirmPayment(r.Context(), ev.OrderID, ev.Reference, ev.Succeeded, ev.Reason); err != nil {
		if apperr.KindOf(err) == apperr.KindSystem {
			h.fail(w, "PaymentWebhook", err)
			return
		}
		h.Logger.Warn("PAYMENT", fmt.Sprintf("Webhook for %s not applied: %v", ev.Reference, err))
		utils.WriteSuccess(w, http.StatusOK, map[string]bool{"received": true, "applied": false})
		return
	}
	utils.WriteSuccess(w, http.StatusOK, map[string]bool{"received": true, "applied": true})
}
