package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"persona-call-golang/internal/data/msg"
	"persona-call-golang/internal/domain/call"
	"persona-call-golang/internal/domain/history"
	"persona-call-golang/internal/domain/rag"
	"persona-call-golang/internal/domain/voice"
	"persona-call-golang/internal/util"
	log "persona-call-golang/logger"
)

const defaultPersona = "Neil Armstrong"

// CallConn binds one websocket connection to one call: a voice
// controller fed by binary audio frames and an orchestrator driven by
// JSON intents.
type CallConn struct {
	server *Server
	conn   *websocket.Conn
	callID string

	ragClient    *rag.Client
	historyStore *history.Store

	sendQueue *util.Queue[*msg.ServerMessage]
	capture   *remoteCapture
	player    *forwardPlayer
	video     *remoteVideo

	mu        sync.Mutex
	voiceCtrl *voice.Controller
	orch      *call.Orchestrator

	ctx       context.Context
	cancel    context.CancelFunc
	writeDone chan struct{}
	closeOnce sync.Once
}

func newCallConn(pctx context.Context, server *Server, conn *websocket.Conn) *CallConn {
	ctx, cancel := context.WithCancel(pctx)
	c := &CallConn{
		server:       server,
		conn:         conn,
		callID:       uuid.NewString(),
		ragClient:    server.ragClient,
		historyStore: server.historyStore,
		sendQueue:    util.NewQueue[*msg.ServerMessage](64),
		capture:      newRemoteCapture(),
		ctx:          ctx,
		cancel:       cancel,
		writeDone:    make(chan struct{}),
	}
	c.player = newForwardPlayer(c.push)
	c.video = newRemoteVideo(c.push)
	return c
}

func (c *CallConn) run() {
	go c.writeLoop()
	c.readLoop()
	c.close()
}

func (c *CallConn) readLoop() {
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debugf("call %s read ended: %v", c.callID, err)
			}
			return
		}
		if msgType == websocket.BinaryMessage {
			c.capture.Feed(data)
			continue
		}

		var m msg.ClientMessage
		if err := json.Unmarshal(data, &m); err != nil {
			c.pushError("malformed message")
			continue
		}
		c.dispatch(&m)
	}
}

// writeLoop drains the send queue until it is closed, so messages
// queued right before a close (the goodbye) still go out.
func (c *CallConn) writeLoop() {
	defer close(c.writeDone)
	for {
		m, err := c.sendQueue.Pop(context.Background(), 0)
		if err != nil {
			return
		}
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteJSON(m); err != nil {
			log.Debugf("call %s write failed: %v", c.callID, err)
			return
		}
	}
}

func (c *CallConn) dispatch(m *msg.ClientMessage) {
	switch m.Type {
	case msg.ClientMessageTypeStart:
		c.handleStart(m)
	case msg.ClientMessageTypeRecordStart:
		if orch := c.orchestrator(); orch != nil {
			if err := orch.StartRecording(); err != nil && !errors.Is(err, call.ErrNotReady) {
				c.pushError(err.Error())
			}
		}
	case msg.ClientMessageTypeRecordStop:
		if orch := c.orchestrator(); orch != nil {
			orch.StopRecording()
		}
	case msg.ClientMessageTypeSendText:
		c.handleSendText(m.Text)
	case msg.ClientMessageTypeToggleMute:
		c.handleToggleMute()
	case msg.ClientMessageTypeSetMode:
		if orch := c.orchestrator(); orch != nil {
			orch.SetMode(m.Mode)
		}
	case msg.ClientMessageTypeRetryStatus:
		if orch := c.orchestrator(); orch != nil {
			go orch.RetryStatus()
		}
	case msg.ClientMessageTypeInitialize:
		if orch := c.orchestrator(); orch != nil {
			go orch.InitializeSystem()
		}
	case msg.ClientMessageTypeVideoEvent:
		c.video.handleEvent(m.Event, m.Progress)
	case msg.ClientMessageTypePlaybackEnded:
		c.player.PlaybackEnded()
	case msg.ClientMessageTypeUpdateAPIURL:
		c.handleUpdateAPIURL(m.URL)
	case msg.ClientMessageTypeEnd:
		c.push(&msg.ServerMessage{Type: msg.ServerMessageTypeGoodbye, CallID: c.callID})
		c.close()
	default:
		c.pushError("unknown message type: " + m.Type)
	}
}

func (c *CallConn) handleStart(m *msg.ClientMessage) {
	c.mu.Lock()
	if c.orch != nil {
		c.mu.Unlock()
		c.pushError("call already started")
		return
	}

	persona := m.Persona
	if persona == "" {
		persona = defaultPersona
	}

	voiceCtrl := voice.NewController(c.ctx, c.ragClient, c.capture, c.player,
		voice.WithOnStatusChange(func(s voice.Status) {
			c.push(&msg.ServerMessage{Type: msg.ServerMessageTypeSessionStatus, Status: s.String()})
		}),
		voice.WithOnRecognizedText(func(text string) {
			if orch := c.orchestrator(); orch != nil {
				orch.HandleRecognizedText(text)
			}
		}),
		voice.WithOnAnswerText(func(text string) {
			if orch := c.orchestrator(); orch != nil {
				orch.HandleAnswerText(text)
			}
		}),
		voice.WithOnError(func(errMsg string) {
			c.pushError(errMsg)
		}),
	)

	orch := call.New(c.ctx, persona, m.Video, c.ragClient, voiceCtrl, c.video,
		call.WithAutoRecord(c.server.autoRecord),
		call.WithEvents(call.Events{
			OnPhaseChange: func(p call.Phase) {
				c.push(&msg.ServerMessage{Type: msg.ServerMessageTypePhase, Phase: p.String()})
			},
			OnReadinessChange: func(r call.Readiness, errMsg string) {
				c.push(&msg.ServerMessage{Type: msg.ServerMessageTypeReadiness, Readiness: r.String(), Error: errMsg})
			},
			OnMessage: c.handleChatMessage,
		}),
	)

	c.voiceCtrl = voiceCtrl
	c.orch = orch
	c.mu.Unlock()

	log.Infof("call %s started: persona=%q video=%q", c.callID, persona, m.Video)
	c.push(&msg.ServerMessage{Type: msg.ServerMessageTypePhase, CallID: c.callID, Phase: orch.Phase().String()})

	go orch.Start()
	go c.pushCapabilities(orch)
}

func (c *CallConn) handleChatMessage(m call.ChatMessage) {
	message := m
	c.push(&msg.ServerMessage{Type: msg.ServerMessageTypeMessage, Message: &message})
	if c.historyStore != nil {
		if err := c.historyStore.Add(c.ctx, c.callID, m); err != nil {
			log.Warnf("call %s history write failed: %v", c.callID, err)
		}
	}
}

func (c *CallConn) handleSendText(text string) {
	orch := c.orchestrator()
	if orch == nil {
		c.pushError("call not started")
		return
	}
	switch err := orch.SendText(text); {
	case err == nil:
	case errors.Is(err, call.ErrEmptyMessage):
		// A blank submit is a user no-op.
	case errors.Is(err, call.ErrTextPending):
		c.pushError("previous question is still being processed")
	case errors.Is(err, call.ErrNotReady):
		c.pushError("system is not ready")
	default:
		c.pushError(err.Error())
	}
}

func (c *CallConn) handleToggleMute() {
	orch := c.orchestrator()
	if orch == nil {
		return
	}
	muted := orch.ToggleMute()
	c.push(&msg.ServerMessage{
		Type:   msg.ServerMessageTypeSessionStatus,
		Status: c.voiceController().Status().String(),
		Muted:  muted,
	})
}

func (c *CallConn) handleUpdateAPIURL(url string) {
	if url == "" {
		c.pushError("empty API URL")
		return
	}
	c.ragClient.UpdateBaseURL(url)
	if orch := c.orchestrator(); orch != nil {
		go orch.RetryStatus()
	}
}

func (c *CallConn) pushCapabilities(orch *call.Orchestrator) {
	languages, voices := orch.Capabilities()
	c.push(&msg.ServerMessage{
		Type:         msg.ServerMessageTypeCapabilities,
		SttLanguages: languages,
		TtsVoices:    voices,
	})
}

func (c *CallConn) push(m *msg.ServerMessage) {
	if err := c.sendQueue.Push(m); err != nil {
		log.Debugf("call %s drop outbound %s: %v", c.callID, m.Type, err)
	}
}

func (c *CallConn) pushError(errMsg string) {
	c.push(&msg.ServerMessage{Type: msg.ServerMessageTypeError, Error: errMsg})
}

func (c *CallConn) orchestrator() *call.Orchestrator {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.orch
}

func (c *CallConn) voiceController() *voice.Controller {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.voiceCtrl
}

func (c *CallConn) close() {
	c.closeOnce.Do(func() {
		if orch := c.orchestrator(); orch != nil {
			orch.End()
		}
		c.sendQueue.Close()
		select {
		case <-c.writeDone:
		case <-time.After(2 * time.Second):
		}
		c.cancel()
		_ = c.conn.Close()
		c.server.unregister(c.callID)
		log.Infof("call %s closed", c.callID)
	})
}
