package main

import (
	"log/slog"
	"os"
	"os/signal"
	"sofin/app/notify"
	"sofin/app/server"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
)

var (
	srv *server.HttpHandler
	env string
)

func main() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go srv.Start()

	slog.Info("press CTRL+C to stop program\n")
	<-sigCh
	slog.Info("Shutting down\n")
	os.Exit(0)
}

func init() {
	err := godotenv.Load()
	env = os.Getenv("ENV")
	if err != nil && env != "PROD" {
		slog.Error("error while initializing godotenv")
		os.Exit(1)
	}
	slog.SetLogLoggerLevel(slog.LevelDebug.Level())

	srv = &server.HttpHandler{}
	srv.Init()

	tgApiKey := os.Getenv("TELEGRAM_API_KEY")
	tgChatId, _ := strconv.ParseInt(os.Getenv("TELEGRAM_CHAT_ID"), 10, 64)
	if tgApiKey != "" && tgChatId != 0 {
		notifier, err := notify.NewTelegramNotifier(tgApiKey, tgChatId)
		if err != nil {
			slog.Error("error while initializing telegram notifier")
		} else {
			srv.Notifier = notifier
		}
	}
}
