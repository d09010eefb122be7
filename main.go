package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/gptgenerals/server/game"
	"github.com/gptgenerals/server/token"
	"github.com/gptgenerals/server/util"
	"github.com/gptgenerals/server/ws"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	util.InitValidator()

	config, err := util.LoadConfig()

	if err != nil {
		logger.Fatal().Err(err).Msg("cannot load config")
	}

	maker, err := token.NewPasetoMaker(config.TokenSecret)

	if err != nil {
		logger.Fatal().Err(err).Msg("cannot create token maker")
	}

	engineCfg := game.Config{
		Width:            config.MapWidth,
		Height:           config.MapHeight,
		WaterProbability: config.WaterProbability,
		NumCoins:         config.NumCoins,
		MaxHistory:       256,
	}

	manager := ws.NewManager(engineCfg, maker, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/token", manager.TokenHandler)
	mux.HandleFunc("/ws", manager.ServeWS)

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:3001", "http://localhost:8080"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler(mux)

	addr := fmt.Sprintf(":%s", config.Port)
	logger.Info().Str("addr", addr).Msg("starting server")

	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}
