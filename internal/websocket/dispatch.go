package websocket

import (
	"errors"
	"log/slog"

	"github.com/chatrelay/relay/backend/internal/models"
	"github.com/chatrelay/relay/backend/internal/services"
	"github.com/dustin/go-humanize"
)

// handleEvent applies one inbound event. Everything except join requires a
// joined connection; events from unjoined connections are logged and dropped.
func (h *Hub) handleEvent(c Conn, ev models.Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panic", "clientId", c.ID(), "type", ev.Type(), "panic", r)
		}
	}()

	state, ok := h.registry.Get(c.ID())
	if !ok {
		slog.Warn("event from unregistered connection dropped", "clientId", c.ID(), "type", ev.Type())
		h.metrics.EventsDropped.WithLabelValues("unregistered").Inc()
		return
	}
	h.metrics.Events.WithLabelValues(string(ev.Type())).Inc()

	if join, isJoin := ev.(*models.JoinEvent); isJoin {
		h.handleJoin(c, join)
		return
	}
	if !state.Joined {
		slog.Warn("event before join ignored", "clientId", c.ID(), "type", ev.Type())
		h.metrics.EventsDropped.WithLabelValues("not_joined").Inc()
		return
	}

	switch e := ev.(type) {
	case *models.TypingEvent:
		h.handleTyping(c, e)
	case *models.ReadEvent:
		h.handleRead(c, state, e)
	case *models.MessageEvent:
		h.handleMessage(state, e)
	case *models.EditEvent:
		h.handleEdit(c, e)
	case *models.ReactionEvent:
		h.handleReaction(c, state, e)
	case *models.FileEvent:
		h.handleFile(state, e)
	case *models.DeleteEvent:
		h.handleDelete(c, e)
	case *models.ProfileEvent:
		h.handleProfile(c, e)
	case *models.NotificationSettingsEvent:
		h.handleNotificationSettings(c, e)
	default:
		slog.Warn("unhandled event type", "clientId", c.ID(), "type", ev.Type())
		h.metrics.EventsDropped.WithLabelValues("unhandled").Inc()
	}
}

// handleJoin names the connection, replays history to it and republishes
// presence to everyone.
func (h *Hub) handleJoin(c Conn, e *models.JoinEvent) {
	state, err := h.registry.Join(c.ID(), e.Username)
	if err != nil {
		slog.Warn("join ignored", "clientId", c.ID(), "username", e.Username, "error", err)
		h.metrics.EventsDropped.WithLabelValues("rejoin").Inc()
		return
	}
	h.metrics.JoinedClients.Set(float64(h.registry.JoinedCount()))
	slog.Info("client joined", "clientId", c.ID(), "username", state.Username)

	h.router.Unicast(c.ID(), models.NewHistory(models.WithoutContent(h.store.Snapshot())))
	h.router.Broadcast(models.NewSystem(state.Username+" joined the chat", h.now()), "")
	h.router.Broadcast(services.ActiveUsers(h.registry), "")
}

func (h *Hub) handleTyping(c Conn, e *models.TypingEvent) {
	state, err := h.registry.SetTyping(c.ID(), e.IsTyping)
	if err != nil {
		slog.Warn("typing update failed", "clientId", c.ID(), "error", err)
		return
	}
	h.router.Broadcast(models.NewTyping(state.Username, e.IsTyping), c.ID())
}

func (h *Hub) handleMessage(state services.ClientState, e *models.MessageEvent) {
	msg := h.store.Append(models.Message{
		ID:       string(e.ID),
		Username: state.Username,
		Body:     e.Message,
		Format:   e.Format,
		ReplyTo:  string(e.ReplyTo),
		Mentions: services.DetectMentions(e.Message),
	})
	h.metrics.HistoryLen.Set(float64(h.store.Len()))
	slog.Debug("message stored", "clientId", state.ConnID, "messageId", msg.ID, "mentions", len(msg.Mentions))

	h.router.Broadcast(models.NewMessage(msg), "")
	h.notifier.Notify(msg.Mentions, msg)
}

// handleFile stores an upload as a message whose body is the filename.
// Filenames are not scanned for mentions.
func (h *Hub) handleFile(state services.ClientState, e *models.FileEvent) {
	size := len(e.Content)
	msg := h.store.Append(models.Message{
		ID:       string(e.ID),
		Username: state.Username,
		Body:     e.Filename,
		ReplyTo:  string(e.ReplyTo),
		File: &models.Attachment{
			Filename:  e.Filename,
			Content:   e.Content,
			Mime:      e.Mime,
			Size:      size,
			SizeText:  humanize.Bytes(uint64(size)),
			Width:     e.Width,
			Height:    e.Height,
			Thumbnail: e.Thumbnail,
			Poster:    e.Poster,
			Duration:  e.Duration,
			PageCount: e.PageCount,
			Snippet:   e.Snippet,
		},
	})
	h.metrics.HistoryLen.Set(float64(h.store.Len()))
	slog.Info("file shared", "clientId", state.ConnID, "messageId", msg.ID,
		"filename", e.Filename, "mime", e.Mime, "size", msg.File.SizeText)

	h.router.Broadcast(models.NewMessage(msg), "")
}

func (h *Hub) handleEdit(c Conn, e *models.EditEvent) {
	msg, err := h.store.Edit(string(e.MessageID), e.NewMessage)
	if err != nil {
		h.logMiss(c, models.EventEdit, e.MessageID, err)
		return
	}
	h.router.Broadcast(models.NewEdit(msg), "")
}

func (h *Hub) handleDelete(c Conn, e *models.DeleteEvent) {
	msg, err := h.store.Delete(string(e.MessageID))
	if err != nil {
		h.logMiss(c, models.EventDelete, e.MessageID, err)
		return
	}
	h.router.Broadcast(models.NewDelete(msg.ID), "")
}

func (h *Hub) handleReaction(c Conn, state services.ClientState, e *models.ReactionEvent) {
	reactions, err := h.store.React(string(e.MessageID), state.Username, e.Reaction)
	if err != nil {
		h.logMiss(c, models.EventReaction, e.MessageID, err)
		return
	}
	h.router.Broadcast(models.NewReaction(string(e.MessageID), reactions), "")
}

// handleRead broadcasts the readers list only when it grew.
func (h *Hub) handleRead(c Conn, state services.ClientState, e *models.ReadEvent) {
	readers, changed, err := h.store.MarkRead(string(e.MessageID), state.Username)
	if err != nil {
		h.logMiss(c, models.EventRead, e.MessageID, err)
		return
	}
	if !changed {
		return
	}
	h.router.Broadcast(models.NewMessageRead(string(e.MessageID), readers), "")
}

func (h *Hub) handleProfile(c Conn, e *models.ProfileEvent) {
	state, err := h.registry.UpdateProfile(c.ID(), e.ProfileUpdate)
	if err != nil {
		slog.Warn("profile update rejected", "clientId", c.ID(), "error", err)
		return
	}
	h.router.Broadcast(models.NewProfile(state.Profile()), "")
	h.router.Broadcast(services.ActiveUsers(h.registry), "")
}

func (h *Hub) handleNotificationSettings(c Conn, e *models.NotificationSettingsEvent) {
	if _, err := h.registry.SetNotificationPref(c.ID(), e.Enabled); err != nil {
		slog.Warn("notification settings update failed", "clientId", c.ID(), "error", err)
		return
	}
	slog.Debug("notification settings updated", "clientId", c.ID(), "enabled", e.Enabled)
}

// logMiss records an operation on a message outside the window or a
// tombstone. Nothing is sent back to the client.
func (h *Hub) logMiss(c Conn, t models.EventType, id models.ID, err error) {
	reason := "not_found"
	if errors.Is(err, services.ErrMessageDeleted) {
		reason = "deleted"
	}
	slog.Debug("message operation missed", "clientId", c.ID(), "type", t, "messageId", id, "error", err)
	h.metrics.EventsDropped.WithLabelValues(reason).Inc()
}
