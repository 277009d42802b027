/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"reflect"
	"strings"
	"time"

	ws "nhooyr.io/websocket"

	"github.com/friendsincode/grimnir_kiosk/internal/events"
	"github.com/friendsincode/grimnir_kiosk/internal/telemetry"
)

const statusEventType = "status"

// handleEvents streams bus events plus a periodic status snapshot.
// ?types= narrows the bus events; the snapshot is always sent.
func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.Accept(w, r, &ws.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		a.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	telemetry.APIWebSocketConnections.Inc()
	defer telemetry.APIWebSocketConnections.Dec()

	// Reads are only needed to notice the client going away.
	ctx := conn.CloseRead(r.Context())

	eventTypes := parseEventTypes(r.URL.Query().Get("types"))
	if len(eventTypes) == 0 {
		eventTypes = events.AllTypes()
	}

	cases := make([]reflect.SelectCase, 0, len(eventTypes)+3)
	subscribers := make([]events.Subscriber, 0, len(eventTypes))
	if a.bus != nil {
		for _, eventType := range eventTypes {
			sub := a.bus.Subscribe(eventType)
			subscribers = append(subscribers, sub)
			cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(sub)})
		}
		defer func() {
			for i, sub := range subscribers {
				a.bus.Unsubscribe(eventTypes[i], sub)
			}
		}()
	}

	statusTicker := time.NewTicker(a.statusInterval)
	defer statusTicker.Stop()
	pingTicker := time.NewTicker(a.pingInterval)
	defer pingTicker.Stop()

	doneIdx := len(cases)
	statusIdx := doneIdx + 1
	pingIdx := doneIdx + 2
	cases = append(cases,
		reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())},
		reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(statusTicker.C)},
		reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(pingTicker.C)},
	)

	if err := a.writeStatus(ctx, conn); err != nil {
		return
	}

	for {
		chosen, value, ok := reflect.Select(cases)
		switch {
		case chosen == doneIdx:
			conn.Close(ws.StatusNormalClosure, "context cancelled")
			return
		case chosen == statusIdx:
			if err := a.writeStatus(ctx, conn); err != nil {
				a.logger.Debug().Err(err).Msg("websocket status write failed")
				return
			}
		case chosen == pingIdx:
			if err := conn.Write(ctx, ws.MessageText, []byte(`{"type":"ping"}`)); err != nil {
				a.logger.Debug().Err(err).Msg("websocket ping failed")
				return
			}
		default:
			if !ok {
				// Subscriber closed by the bus; stop selecting on it.
				cases[chosen].Chan = reflect.Value{}
				continue
			}
			payload, _ := value.Interface().(events.Payload)
			if err := a.writeEvent(ctx, conn, string(eventTypes[chosen]), payload); err != nil {
				a.logger.Debug().Err(err).Msg("websocket write failed")
				return
			}
		}
	}
}

func (a *API) writeStatus(ctx context.Context, conn *ws.Conn) error {
	return a.writeEvent(ctx, conn, statusEventType, a.scheduler.Status().Payload())
}

func (a *API) writeEvent(ctx context.Context, conn *ws.Conn, eventType string, payload any) error {
	data, err := json.Marshal(map[string]any{
		"type":    eventType,
		"payload": payload,
	})
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return conn.Write(writeCtx, ws.MessageText, data)
}

func parseEventTypes(raw string) []events.EventType {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]events.EventType, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, events.EventType(part))
	}
	return out
}
