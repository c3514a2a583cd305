package handler

import (
	"net/http"
	"time"

	"floatai/internal/conversation"
	"floatai/internal/model"
	"floatai/internal/service"
	"floatai/internal/utils"
	"floatai/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type ChatHandler struct {
	chatService *service.ChatService
	views       *conversation.Registry
	heartbeat   time.Duration
}

func NewChatHandler(chatService *service.ChatService, views *conversation.Registry, heartbeat time.Duration) *ChatHandler {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &ChatHandler{
		chatService: chatService,
		views:       views,
		heartbeat:   heartbeat,
	}
}

func viewResponse(v *conversation.View) model.ViewResponse {
	return model.ViewResponse{
		ViewID:   v.ID(),
		ChatID:   v.ChatID(),
		Phase:    v.Phase().String(),
		Messages: v.Transcript().Messages(),
	}
}

func (h *ChatHandler) CreateView(c *gin.Context) {
	v := h.views.Create()
	c.JSON(http.StatusCreated, viewResponse(v))
}

func (h *ChatHandler) GetView(c *gin.Context) {
	v, err := h.views.Get(c.Param("view_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewResponse(v))
}

func (h *ChatHandler) DeleteView(c *gin.Context) {
	if err := h.views.Remove(c.Param("view_id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "View deleted successfully"})
}

// SetCollapsed 切换推理内容的折叠状态
func (h *ChatHandler) SetCollapsed(c *gin.Context) {
	v, err := h.views.Get(c.Param("view_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	var req model.CollapseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := v.SetReasoningCollapsed(req.Index, req.Collapsed); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewResponse(v))
}

// OpenChat 把已保存的会话加载进视图
func (h *ChatHandler) OpenChat(c *gin.Context) {
	v, err := h.views.Get(c.Param("view_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.chatService.OpenChat(v, c.Param("chat_id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewResponse(v))
}

// Send 执行一轮对话并以SSE推送每次会话记录变更，轮次开启前的错误以JSON返回
func (h *ChatHandler) Send(c *gin.Context) {
	var req model.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	view, err := h.views.Get(req.ViewID)
	if err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	turn, err := h.chatService.Prepare(ctx, view, model.TurnInput{Text: req.Text, PromptID: req.PromptID})
	if err != nil {
		respondError(c, err)
		return
	}
	log := logger.WithFields(logrus.Fields{"view_id": view.ID(), "turn_id": turn.ID})

	snapshots, unsubscribe := view.Subscribe()
	defer unsubscribe()

	sse := utils.NewSSEWriter(c.Writer)
	sse.WriteJSON("status", gin.H{
		"type":      "processing_start",
		"turn_id":   turn.ID,
		"mode":      turn.Mode.String(),
		"timestamp": time.Now().Unix(),
	})

	var prev model.Transcript
	emit := func(cur model.Transcript) error {
		defer func() { prev = cur }()
		last := cur.Len() - 1
		if last < 0 {
			return nil
		}
		if last == prev.Len()-1 && cur.At(last).Equal(prev.At(last)) {
			return nil
		}
		if cur.Len() < prev.Len() {
			// 中止的轮次删除了临时消息，随后发送 error 事件
			return nil
		}
		return sse.WriteJSON("message", model.MessageResponse{
			ViewID:    view.ID(),
			TurnID:    turn.ID,
			Index:     last,
			Message:   cur.At(last),
			Timestamp: time.Now().Unix(),
		})
	}

	// 先推送用户消息，避免被后续快照覆盖
	if cur, ok := <-snapshots; ok {
		emit(cur)
	}

	done := make(chan error, 1)
	go func() {
		done <- h.chatService.Run(turn)
	}()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case cur, ok := <-snapshots:
			if !ok {
				snapshots = nil
				continue
			}
			if err := emit(cur); err != nil {
				log.Errorf("Failed to write SSE: %v", err)
				return
			}

		case err := <-done:
			select {
			case cur, ok := <-snapshots:
				if ok {
					emit(cur)
				}
			default:
			}
			if err != nil {
				sse.WriteJSON("error", gin.H{
					"type":      "turn_error",
					"error":     err.Error(),
					"status":    statusFor(err),
					"turn_id":   turn.ID,
					"length":    view.Transcript().Len(),
					"timestamp": time.Now().Unix(),
				})
				sse.Close()
				return
			}
			sse.WriteJSON("status", gin.H{
				"type":      "processing_complete",
				"turn_id":   turn.ID,
				"chat_id":   view.ChatID(),
				"timestamp": time.Now().Unix(),
			})
			sse.Close()
			return

		case <-heartbeat.C:
			if err := sse.WriteJSON("heartbeat", gin.H{"type": "heartbeat", "timestamp": time.Now().Unix()}); err != nil {
				log.Warnf("heartbeat failed: %v", err)
				return
			}

		case <-ctx.Done():
			// 轮次 context 派生自请求，模型调用随之停止
			log.Info("client disconnected")
			return
		}
	}
}

func (h *ChatHandler) ListChats(c *gin.Context) {
	chats, err := h.chatService.ListChats()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

func (h *ChatHandler) GetChat(c *gin.Context) {
	chat, err := h.chatService.GetChat(c.Param("chat_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (h *ChatHandler) DeleteChat(c *gin.Context) {
	if err := h.chatService.DeleteChat(c.Param("chat_id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Chat deleted successfully"})
}
