// roomsync-demo joins a relay room, animates the local peer's position
// and prints what it sees from everyone else.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/roomsync/roomsync/internal/engine"
	"github.com/roomsync/roomsync/internal/rooms"
	"github.com/roomsync/roomsync/internal/transport"
	"github.com/roomsync/roomsync/internal/wire"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found")
	}

	var (
		relayURL   = flag.String("relay", envOr("RELAY_URL", "http://localhost:8787"), "relay base URL")
		roomID     = flag.String("room", "", "room id to join; empty creates a new room")
		smoothing  = flag.String("smoothing", string(engine.SmoothingLerp), "smoothing mode: none, lerp, interpolate")
		configPath = flag.String("config", "", "optional YAML config file")
	)
	flag.Parse()

	cfg := engine.DefaultConfig()
	if *configPath != "" {
		loaded, err := engine.LoadConfig(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load config")
		}
		cfg = loaded
	}
	cfg.Smoothing = engine.Smoothing(*smoothing)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	target := *roomID
	if target == "" {
		room, err := rooms.NewClient(*relayURL).Create(ctx, "demo", 0)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create room")
		}
		target = room.ID
		log.Info().Str("room", target).Msg("created room")
	}

	state := map[string]any{
		"players": map[string]any{},
	}
	client := engine.NewClient(cfg, transport.WebsocketDialer(wsURL(*relayURL)))
	if err := client.BindState(state); err != nil {
		log.Fatal().Err(err).Msg("failed to bind state")
	}

	if err := client.Join(ctx, target); err != nil {
		log.Fatal().Err(err).Msg("failed to join room")
	}
	defer client.Leave()

	go func() {
		for ev := range client.Events() {
			switch e := ev.(type) {
			case engine.PeerJoinedEvent:
				log.Info().Str("player", e.PlayerID).Msg("peer joined")
			case engine.PeerLeftEvent:
				log.Info().Str("player", e.PlayerID).Msg("peer left")
			case engine.ReconnectingEvent:
				log.Warn().Int("attempt", e.Attempt).Int64("delay_ms", e.DelayMs).Msg("reconnecting")
			case engine.ReconnectFailedEvent:
				log.Error().Int("attempts", e.Attempts).Msg("reconnect failed, giving up")
			case engine.ErrorEvent:
				log.Error().Err(e.Err).Msg("engine error")
			}
		}
	}()

	// Walk the local peer around a circle; the engine coalesces and
	// broadcasts only what changed.
	start := time.Now()
	ticker := time.NewTicker(33 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t := time.Since(start).Seconds()
			client.UpdateLocal(func(rec wire.Record) {
				rec["x"] = math.Cos(t) * 100
				rec["y"] = math.Sin(t) * 100
				rec["name"] = "demo-" + client.PlayerID()[:8]
				rec["_session"] = start.UnixMilli() // never leaves this process
			})
			if int(t)%5 == 0 {
				fmt.Printf("peers=%v latency=%s\n", shortIDs(client.PeerIDs()), client.Latency())
			}
		}
	}
}

func shortIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if len(id) > 8 {
			id = id[:8]
		}
		out = append(out, id)
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func wsURL(httpURL string) string {
	switch {
	case len(httpURL) > 8 && httpURL[:8] == "https://":
		return "wss://" + httpURL[8:] + "/ws"
	case len(httpURL) > 7 && httpURL[:7] == "http://":
		return "ws://" + httpURL[7:] + "/ws"
	default:
		return httpURL + "/ws"
	}
}
