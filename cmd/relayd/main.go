package main

import (
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/roomsync/roomsync/internal/relay"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found")
	}

	addr := os.Getenv("RELAY_ADDR")
	if addr == "" {
		addr = ":8787"
	}

	server := relay.NewServer()
	log.Info().Str("addr", addr).Msg("relayd listening")
	if err := http.ListenAndServe(addr, server.Handler()); err != nil {
		log.Fatal().Err(err).Msg("relayd exited")
	}
}
