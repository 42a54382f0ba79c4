package routers

import (
	"net/http"

	"github.com/Khoadoanduy/fair-share-sub001/internal/api/handlers/webhook"
)

func webhookRouter() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/webhook", webhook.StripeWebhook)

	return mux
}
