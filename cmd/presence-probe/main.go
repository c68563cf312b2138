// Package main provides a probe client for exercising a presence
// server: it mints a token, joins a space, and walks around at random
// while printing every event it receives.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/incuverse/presence/internal/auth"
	"github.com/incuverse/presence/internal/protocol"
)

func main() {
	serverURL := flag.String("url", "ws://localhost:3001/ws", "websocket URL of the presence server")
	secret := flag.String("secret", "", "JWT secret the server was started with")
	issuer := flag.String("issuer", "", "token issuer, if the server checks one")
	userID := flag.String("user", "", "user ID to connect as")
	spaceID := flag.String("space", "", "space to join")
	interval := flag.Duration("interval", 2*time.Second, "time between steps")
	flag.Parse()

	if *secret == "" || *userID == "" || *spaceID == "" {
		flag.Usage()
		os.Exit(2)
	}

	token, err := auth.Sign(*secret, *issuer, *userID, time.Hour)
	if err != nil {
		log.Fatalf("signing token: %v", err)
	}

	conn, resp, err := websocket.DefaultDialer.Dial(*serverURL+"?token="+token, nil)
	if err != nil {
		if resp != nil {
			log.Fatalf("dialing %s: %v (status %d)", *serverURL, err, resp.StatusCode)
		}
		log.Fatalf("dialing %s: %v", *serverURL, err)
	}
	defer conn.Close()

	join, err := protocol.Encode(protocol.TypeJoinSpace, protocol.JoinSpace{SpaceID: *spaceID})
	if err != nil {
		log.Fatalf("encoding join: %v", err)
	}
	if err := conn.WriteJSON(join); err != nil {
		log.Fatalf("sending join: %v", err)
	}

	// The walker needs the spawn position and bounds before it can move.
	var msg protocol.Message
	if err := conn.ReadJSON(&msg); err != nil {
		log.Fatalf("reading join reply: %v", err)
	}
	if msg.Type != protocol.TypeSpaceJoined {
		log.Fatalf("join refused: %s %s", msg.Type, msg.Payload)
	}
	var joined protocol.SpaceJoined
	if err := protocol.DecodePayload(msg, &joined); err != nil {
		log.Fatalf("decoding join reply: %v", err)
	}
	fmt.Printf("joined %q at (%d,%d), %d other user(s)\n",
		joined.Space.Name, joined.Spawn.X, joined.Spawn.Y, len(joined.Users))

	events := make(chan protocol.Message)
	readErr := make(chan error, 1)
	go func() {
		for {
			var m protocol.Message
			if err := conn.ReadJSON(&m); err != nil {
				readErr <- err
				return
			}
			events <- m
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	x, y := joined.Spawn.X, joined.Spawn.Y
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			nx, ny := step(x, y, joined.Space.Width, joined.Space.Height)
			mv, err := protocol.Encode(protocol.TypeMove, protocol.Move{X: nx, Y: ny})
			if err != nil {
				log.Fatalf("encoding move: %v", err)
			}
			if err := conn.WriteJSON(mv); err != nil {
				log.Fatalf("sending move: %v", err)
			}
			x, y = nx, ny
			fmt.Printf("moved to (%d,%d)\n", x, y)
		case ev := <-events:
			switch ev.Type {
			case protocol.TypeMovementRejected:
				var rej protocol.MovementRejected
				if err := protocol.DecodePayload(ev, &rej); err == nil {
					x, y = rej.X, rej.Y
				}
				fmt.Printf("move rejected, back at (%d,%d)\n", x, y)
			default:
				fmt.Printf("event %s %s\n", ev.Type, ev.Payload)
			}
		case err := <-readErr:
			log.Fatalf("connection lost: %v", err)
		case <-sigCh:
			fmt.Println("bye")
			return
		}
	}
}

// step picks a random single cardinal step that stays inside the space.
func step(x, y, width, height int) (int, int) {
	type delta struct{ dx, dy int }
	candidates := make([]delta, 0, 4)
	for _, d := range []delta{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
		nx, ny := x+d.dx, y+d.dy
		if nx >= 0 && nx < width && ny >= 0 && ny < height {
			candidates = append(candidates, d)
		}
	}
	d := candidates[rand.IntN(len(candidates))]
	return x + d.dx, y + d.dy
}
