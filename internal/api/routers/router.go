package routers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func MainRouter() *http.ServeMux {

	mux := http.NewServeMux()

	gRouter := groupRouter()
	mux.Handle("/group/", gRouter)

	cRouter := confirmShareRouter()
	mux.Handle("/confirmShare/", cRouter)

	wRouter := webhookRouter()
	mux.Handle("/webhook", wRouter)

	mux.Handle("/metrics", promhttp.Handler())

	return mux
}
