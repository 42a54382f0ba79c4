package main

import (
	"crypto/tls"
	"fmt"
	"log"
	"net/http"
	"os"

	mw "github.com/Khoadoanduy/fair-share-sub001/internal/api/middlewares"
	"github.com/Khoadoanduy/fair-share-sub001/internal/api/routers"
	"github.com/Khoadoanduy/fair-share-sub001/internal/repositories/sqlconnect"
	"github.com/Khoadoanduy/fair-share-sub001/pkg/cron"
	"github.com/Khoadoanduy/fair-share-sub001/pkg/utils"

	"github.com/joho/godotenv"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		return
	}

	utils.InitLogger()

	err = sqlconnect.ConnectDb()
	if err != nil {
		utils.Logger.Fatal("DB connection failed: ", err)
	}

	cronJobs := cron.StartCronJob(sqlconnect.DB)
	defer cronJobs.Stop()

	port := os.Getenv("SERVER_PORT")

	router := routers.MainRouter()

	// The card-network webhook authenticates by signature, and /metrics is
	// scraped internally; everything else requires a session token.
	authMiddleware := mw.MiddlewaresExcludePaths(mw.AuthMiddleware, "/webhook", "/metrics")

	secureMux := mw.Metrics(authMiddleware(mw.SecurityHeaders(router)))

	server := &http.Server{
		Addr:    port,
		Handler: secureMux,
		TLSConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	cert := os.Getenv("CERT_FILE")
	key := os.Getenv("KEY_FILE")

	fmt.Println("Server is running on port", port)
	if cert != "" && key != "" {
		err = server.ListenAndServeTLS(cert, key)
	} else {
		err = server.ListenAndServe()
	}
	if err != nil {
		log.Fatalln("Error starting the server", err)
	}
}
