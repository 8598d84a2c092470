// Package httpapi exposes read-only JSON endpoints over the Player
// Client for the web dashboard collaborator (spec.md §6's "serialized
// event bus payloads for web clients"), grounded on denpa-radio's gin
// route-handler shape (internal/radio/handler/radio.go: a handlers
// struct over a service, one method per gin.Context route, gin.H
// response bodies).
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/twitchsongbot/songbot/internal/eventbus"
	"github.com/twitchsongbot/songbot/internal/playerclient"
)

// upgrader accepts any origin, matching a dashboard served from a
// different host/port than the API during development.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const wsWriteTimeout = 5 * time.Second

// Handlers holds the gin route handlers for the read-only dashboard API.
type Handlers struct {
	player *playerclient.Client
}

// NewHandlers constructs Handlers over player.
func NewHandlers(player *playerclient.Client) *Handlers {
	return &Handlers{player: player}
}

// Register attaches every route to router.
func (h *Handlers) Register(router gin.IRouter) {
	router.GET("/current", h.Current)
	router.GET("/queue", h.Queue)
	router.GET("/length", h.Length)
	router.GET("/events", h.Events)
}

// Current handles GET /current: the currently loaded item, if any.
func (h *Handlers) Current(c *gin.Context) {
	item, ok := h.player.Current()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"playing": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"playing":  true,
		"name":     item.Meta.Name,
		"artists":  item.Meta.Artists,
		"duration": item.Meta.Duration.Seconds(),
		"volume":   h.player.CurrentVolume(),
	})
}

// queueEntry is the dashboard's JSON projection of a models.QueueItem.
type queueEntry struct {
	Name      string   `json:"name"`
	Artists   []string `json:"artists"`
	Duration  float64  `json:"duration"`
	Requester *string  `json:"requester,omitempty"`
}

// Queue handles GET /queue: the full queue in order.
func (h *Handlers) Queue(c *gin.Context) {
	items := h.player.List()
	entries := make([]queueEntry, 0, len(items))
	for _, item := range items {
		entries = append(entries, queueEntry{
			Name:      item.Meta.Name,
			Artists:   item.Meta.Artists,
			Duration:  item.Meta.Duration.Seconds(),
			Requester: item.Requester,
		})
	}
	c.JSON(http.StatusOK, gin.H{"queue": entries})
}

// Length handles GET /length: item count and summed full duration,
// including the currently loaded item.
func (h *Handlers) Length(c *gin.Context) {
	count, totalSeconds := h.player.Length()
	c.JSON(http.StatusOK, gin.H{"count": count, "total_seconds": totalSeconds})
}

// Events handles GET /events: upgrades to a websocket and pushes every
// subsequent Event Bus payload as JSON, for dashboards that want to react
// live instead of polling the endpoints above.
func (h *Handlers) Events(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Debug("httpapi: websocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := h.player.Subscribe()
	defer sub.Close()

	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(serializeEvent(ev)); err != nil {
				return
			}
		case <-c.Request.Context().Done():
			return
		}
	}
}

func serializeEvent(ev eventbus.Event) gin.H {
	body := gin.H{"kind": eventKindName(ev.Kind)}
	if ev.Item != nil {
		body["echo"] = ev.Echo
		body["origin"] = ev.Origin.String()
		body["name"] = ev.Item.Meta.Name
	}
	return body
}

func eventKindName(k eventbus.EventKind) string {
	switch k {
	case eventbus.Empty:
		return "Empty"
	case eventbus.Playing:
		return "Playing"
	case eventbus.Pausing:
		return "Pausing"
	case eventbus.Modified:
		return "Modified"
	case eventbus.NotConfigured:
		return "NotConfigured"
	case eventbus.Detached:
		return "Detached"
	default:
		return "Unknown"
	}
}
