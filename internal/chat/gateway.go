package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	opDispatch     = 0
	opHeartbeat    = 1
	opIdentify     = 2
	opHello        = 10
	opHeartbeatAck = 11

	// GUILDS | GUILD_MESSAGES | MESSAGE_CONTENT
	gatewayIntents = 1 | 1<<9 | 1<<15
)

var mentionPattern = regexp.MustCompile(`<@!?\d+>`)

// MentionEvent is a user message that mentions the bot inside a channel. The
// channel is expected to be a mapped thread; unmapped channels surface as
// not-linked downstream.
type MentionEvent struct {
	ThreadID    string
	MessageID   string
	AuthorID    string
	AuthorName  string
	Content     string
	Attachments []Attachment
}

type MentionHandler func(ctx context.Context, ev MentionEvent)

type GatewayOptions struct {
	URL            string
	BotToken       string
	Handler        MentionHandler
	ReconnectDelay time.Duration
}

// Gateway maintains a websocket session with the chat platform and feeds
// bot-mention messages to its handler.
type Gateway struct {
	url            string
	token          string
	handler        MentionHandler
	reconnectDelay time.Duration

	mu        sync.Mutex
	botUserID string
	seq       *int64
	online    bool
}

func NewGateway(opts GatewayOptions) *Gateway {
	gatewayURL := strings.TrimSpace(opts.URL)
	if gatewayURL == "" {
		gatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"
	}
	reconnectDelay := opts.ReconnectDelay
	if reconnectDelay <= 0 {
		reconnectDelay = 5 * time.Second
	}
	return &Gateway{
		url:            gatewayURL,
		token:          strings.TrimSpace(opts.BotToken),
		handler:        opts.Handler,
		reconnectDelay: reconnectDelay,
	}
}

// SetHandler installs the mention handler. Call before Run; consumers that
// need the gateway's connection state while handling mentions are built after
// the gateway itself.
func (g *Gateway) SetHandler(handler MentionHandler) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handler = handler
}

// Online reports whether a gateway session is currently established.
func (g *Gateway) Online() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.online
}

// Run connects and processes gateway frames until ctx is canceled,
// reconnecting with a fixed delay after session failures.
func (g *Gateway) Run(ctx context.Context) error {
	if g.token == "" {
		return ErrNotConfigured
	}
	for {
		if err := g.runSession(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("gateway session ended, reconnecting", "err", err, "delay", g.reconnectDelay)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(g.reconnectDelay):
		}
	}
}

type gatewayFrame struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d,omitempty"`
	S  *int64          `json:"s,omitempty"`
	T  string          `json:"t,omitempty"`
}

func (g *Gateway) runSession(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, g.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "session end")
	conn.SetReadLimit(1 << 22)

	var hello gatewayFrame
	if err := wsjson.Read(ctx, conn, &hello); err != nil {
		return err
	}
	if hello.Op != opHello {
		return errors.New("gateway did not send hello")
	}
	var helloData struct {
		HeartbeatInterval int `json:"heartbeat_interval"`
	}
	if err := json.Unmarshal(hello.D, &helloData); err != nil {
		return err
	}
	if helloData.HeartbeatInterval <= 0 {
		helloData.HeartbeatInterval = 41250
	}

	identify := map[string]any{
		"op": opIdentify,
		"d": map[string]any{
			"token":   g.token,
			"intents": gatewayIntents,
			"properties": map[string]string{
				"os":      "linux",
				"browser": "mondaybot",
				"device":  "mondaybot",
			},
		},
	}
	if err := wsjson.Write(ctx, conn, identify); err != nil {
		return err
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go g.heartbeatLoop(sessionCtx, conn, time.Duration(helloData.HeartbeatInterval)*time.Millisecond)

	g.setOnline(true)
	defer g.setOnline(false)

	for {
		var frame gatewayFrame
		if err := wsjson.Read(sessionCtx, conn, &frame); err != nil {
			return err
		}
		if frame.S != nil {
			g.mu.Lock()
			g.seq = frame.S
			g.mu.Unlock()
		}
		switch frame.Op {
		case opDispatch:
			g.handleDispatch(sessionCtx, frame.T, frame.D)
		case opHeartbeat:
			if err := wsjson.Write(sessionCtx, conn, map[string]any{"op": opHeartbeat, "d": g.currentSeq()}); err != nil {
				return err
			}
		case opHeartbeatAck:
		default:
		}
	}
}

func (g *Gateway) heartbeatLoop(ctx context.Context, conn *websocket.Conn, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := wsjson.Write(ctx, conn, map[string]any{"op": opHeartbeat, "d": g.currentSeq()}); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) currentSeq() *int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}

func (g *Gateway) setOnline(online bool) {
	g.mu.Lock()
	g.online = online
	g.mu.Unlock()
}

func (g *Gateway) handleDispatch(ctx context.Context, eventType string, data json.RawMessage) {
	switch eventType {
	case "READY":
		var ready struct {
			User struct {
				ID       string `json:"id"`
				Username string `json:"username"`
			} `json:"user"`
		}
		if err := json.Unmarshal(data, &ready); err != nil {
			slog.Error("gateway ready decode failed", "err", err)
			return
		}
		g.mu.Lock()
		g.botUserID = ready.User.ID
		g.mu.Unlock()
		slog.Info("gateway session ready", "bot_user", ready.User.Username)
	case "MESSAGE_CREATE":
		g.mu.Lock()
		botID := g.botUserID
		handler := g.handler
		g.mu.Unlock()
		ev, ok := parseMentionEvent(botID, data)
		if !ok {
			return
		}
		if handler != nil {
			go handler(ctx, ev)
		}
	}
}

// parseMentionEvent extracts a MentionEvent from a MESSAGE_CREATE payload.
// Bot-authored messages and messages that do not mention the bot are skipped.
func parseMentionEvent(botUserID string, data json.RawMessage) (MentionEvent, bool) {
	if botUserID == "" {
		return MentionEvent{}, false
	}
	var msg struct {
		ID        string `json:"id"`
		ChannelID string `json:"channel_id"`
		Content   string `json:"content"`
		Author    struct {
			ID       string `json:"id"`
			Username string `json:"username"`
			Bot      bool   `json:"bot"`
		} `json:"author"`
		Mentions []struct {
			ID string `json:"id"`
		} `json:"mentions"`
		Attachments []Attachment `json:"attachments"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Error("gateway message decode failed", "err", err)
		return MentionEvent{}, false
	}
	if msg.Author.Bot {
		return MentionEvent{}, false
	}
	mentioned := false
	for _, mention := range msg.Mentions {
		if mention.ID == botUserID {
			mentioned = true
			break
		}
	}
	if !mentioned {
		return MentionEvent{}, false
	}
	return MentionEvent{
		ThreadID:    msg.ChannelID,
		MessageID:   msg.ID,
		AuthorID:    msg.Author.ID,
		AuthorName:  msg.Author.Username,
		Content:     stripMentions(msg.Content),
		Attachments: msg.Attachments,
	}, true
}

func stripMentions(content string) string {
	return strings.TrimSpace(mentionPattern.ReplaceAllString(content, ""))
}
