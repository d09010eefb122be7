package main

import (
	"context"
	"encoding/json"
	"flag"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gptgenerals/server/client"
	"github.com/gptgenerals/server/game"
	"github.com/gptgenerals/server/ws"
)

// Random-walk driver: connects as a named player and issues a random move
// each tick until the move budget is spent or the coins are gone. It is
// the seam where a smarter advisor could propose moves; the server
// re-validates every move regardless.
func main() {
	baseURL := flag.String("server", "http://localhost:8765", "server base URL")
	name := flag.String("name", "Simulator", "player display name")
	moves := flag.Int("moves", 20, "number of moves to attempt")
	delay := flag.Duration("delay", time.Second, "delay between moves")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	tkn, err := client.AcquireToken(*baseURL, *name)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot acquire token")
	}

	wsURL := "ws" + (*baseURL)[len("http"):] + "/ws"

	c := client.New(client.Config{
		ServerURL: wsURL,
		Token:     tkn,
		Logger:    logger,
	})

	var mu sync.Mutex
	var latest *ws.GameStateMessage

	c.On(ws.TypeGameState, func(payload json.RawMessage) {
		var msg ws.GameStateMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return
		}
		mu.Lock()
		latest = &msg
		mu.Unlock()
	})

	c.On(ws.TypeMoveResult, func(payload json.RawMessage) {
		var msg ws.MoveResultMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return
		}
		if msg.Success {
			logger.Info().Str("unit", msg.UnitName).Str("direction", msg.Direction).Msg("moved")
		} else {
			logger.Warn().Str("unit", msg.UnitName).Str("direction", msg.Direction).Str("reason", msg.Message).Msg("move rejected")
		}
	})

	if err := c.Connect(context.Background()); err != nil {
		logger.Fatal().Err(err).Msg("cannot connect")
	}
	defer c.Close()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	directions := []game.Direction{game.Up, game.Down, game.Left, game.Right}

	ticker := time.NewTicker(*delay)
	defer ticker.Stop()

	for i := 0; i < *moves; i++ {
		select {
		case err := <-c.Err():
			logger.Fatal().Err(err).Msg("connection lost")
		case <-ticker.C:
		}

		mu.Lock()
		state := latest
		mu.Unlock()

		if state == nil {
			continue
		}

		if len(state.CoinPositions) == 0 && state.CurrentTurn > 0 {
			logger.Info().Int("turn", state.CurrentTurn).Msg("all coins collected")
			return
		}

		unit := pickUnit(state, rng)
		if unit == "" {
			continue
		}

		if err := c.Move(unit, directions[rng.Intn(len(directions))]); err != nil {
			logger.Fatal().Err(err).Msg("cannot send move")
		}
	}

	logger.Info().Int("moves", *moves).Msg("move budget spent")
}

func pickUnit(state *ws.GameStateMessage, rng *rand.Rand) string {
	names := make([]string, 0, len(state.Units))
	for name := range state.Units {
		names = append(names, name)
	}
	if len(names) == 0 {
		return ""
	}
	return names[rng.Intn(len(names))]
}
