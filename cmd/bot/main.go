// A command-line peer for the loot relay: connects as a user, optionally
// fires one intent, then prints everything it sees on the shared channel.
// Handy for poking a running server without a host client.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"

	"lootledger/internal/protocol"
)

func main() {
	var (
		url       = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		userID    = flag.String("user", "bot", "user id")
		name      = flag.String("name", "", "display name (default: user id)")
		gm        = flag.Bool("gm", false, "connect as a privileged session")
		scene     = flag.String("scene", "scene1", "viewed scene")
		character = flag.String("character", "", "character actor id")

		kind      = flag.String("kind", "", "intent kind to send once connected (buy|loot|drop|give; empty = listen only)")
		source    = flag.String("source", "", "source actor id")
		target    = flag.String("target", "", "target actor id")
		token     = flag.String("token", "", "container token id")
		item      = flag.String("item", "", "item or currency id")
		qty       = flag.Int64("qty", 1, "quantity")
		authority = flag.String("authority", "", "authority user id (empty = relay discovers)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		UserID:          *userID,
		UserName:        *name,
		GM:              *gm,
		Scene:           *scene,
		CharacterID:     *character,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME session=%s user=%s", w.SessionID, w.UserID)
			if *kind != "" {
				env := protocol.IntentMsg{
					Type:             protocol.TypeIntent,
					ProtocolVersion:  protocol.Version,
					Kind:             *kind,
					RequestingUserID: *userID,
					SourceActorID:    *source,
					TargetActorID:    *target,
					ContainerTokenID: *token,
					ItemOrCurrencyID: *item,
					Quantity:         *qty,
					AuthorityUserID:  *authority,
				}
				if err := conn.WriteJSON(env); err != nil {
					logger.Fatalf("send INTENT: %v", err)
				}
				logger.Printf("sent %s intent for %s", *kind, *item)
			}

		case protocol.TypeNotice:
			var n protocol.NoticeMsg
			if err := json.Unmarshal(msg, &n); err != nil {
				continue
			}
			logger.Printf("NOTICE %s", n.Text)

		case protocol.TypeError:
			var e protocol.ErrorMsg
			if err := json.Unmarshal(msg, &e); err != nil {
				continue
			}
			if e.TargetUserID != "" && e.TargetUserID != *userID {
				continue
			}
			logger.Printf("ERROR %s: %s", e.Code, e.Message)

		default:
			logger.Printf("%s %s", base.Type, msg)
		}
	}
}
