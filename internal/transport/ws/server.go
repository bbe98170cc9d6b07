// Package ws is the relay surface: peers connect, declare who they speak
// for, and exchange the loot protocol's JSON messages over a websocket. The
// relay broadcasts, the realm decides.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"lootledger/internal/protocol"
	"lootledger/internal/realm"
)

const outboundQueue = 32

type Server struct {
	realm *realm.Realm
	hub   *Hub
	log   *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(r *realm.Realm, hub *Hub, logger *log.Logger) *Server {
	return &Server{
		realm: r,
		hub:   hub,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess, out := s.handshake(conn)
		if sess.UserID == "" {
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				continue
			}
			if base.Type != protocol.TypeIntent {
				continue
			}
			var env protocol.IntentMsg
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			if env.ProtocolVersion != "" && env.ProtocolVersion != protocol.Version {
				continue
			}
			if !protocol.IsKnownKind(env.Kind) {
				s.hub.send(sess.UserID, protocol.ErrorMsg{
					Type:            protocol.TypeError,
					ProtocolVersion: protocol.Version,
					TargetUserID:    sess.UserID,
					Code:            protocol.ErrProtoBadRequest,
					Message:         "unknown intent kind",
				})
				continue
			}
			// The connection, not the payload, says who is asking.
			env.RequestingUserID = sess.UserID
			if env.AuthorityUserID == "" {
				auth, err := s.realm.Discover(ctx, sess.Scene)
				if err != nil {
					s.hub.send(sess.UserID, protocol.ErrorMsg{
						Type:            protocol.TypeError,
						ProtocolVersion: protocol.Version,
						TargetUserID:    sess.UserID,
						Code:            protocol.ErrNoAuthority,
						Message:         "no active authority on your scene",
					})
					continue
				}
				env.AuthorityUserID = auth.UserID
			}
			s.realm.Inbox() <- env
		}

		// Cleanup. The leave carries this connection's identity so a
		// reconnect that already replaced us is left alone.
		s.hub.remove(sess.UserID, out)
		s.realm.Leave() <- realm.Departure{UserID: sess.UserID, ConnID: sess.ConnID}
	}
}

func (s *Server) handshake(conn *websocket.Conn) (realm.Session, chan []byte) {
	var none realm.Session
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return none, nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return none, nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return none, nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return none, nil
	}
	if hello.UserID == "" {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "user_id required"), time.Now().Add(time.Second))
		return none, nil
	}
	if hello.UserName == "" {
		hello.UserName = hello.UserID
	}

	sess := realm.Session{
		UserID:      hello.UserID,
		Name:        hello.UserName,
		GM:          hello.GM,
		Scene:       hello.Scene,
		CharacterID: hello.CharacterID,
		ConnID:      uuid.NewString(),
	}
	out := make(chan []byte, outboundQueue)
	s.hub.add(sess.UserID, out)
	s.realm.Join() <- sess

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sess.ConnID,
		UserID:          sess.UserID,
	}
	if err := writeJSON(conn, welcome); err != nil {
		s.hub.remove(sess.UserID, out)
		s.realm.Leave() <- realm.Departure{UserID: sess.UserID, ConnID: sess.ConnID}
		return none, nil
	}

	return sess, out
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
