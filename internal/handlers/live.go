package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/harentsoaR/tabib-api/internal/auth"
	"github.com/harentsoaR/tabib-api/internal/middleware"
	"github.com/harentsoaR/tabib-api/internal/models"
	"github.com/harentsoaR/tabib-api/internal/services"
	"github.com/harentsoaR/tabib-api/internal/store"
)

// Live topics. Specialty and message topics carry their key after the colon,
// e.g. "doctors:Dentiste" or "messages:<appointmentId>".
const (
	topicDoctors            = "doctors"
	topicDoctorsBySpecialty = "doctors:"
	topicMyAppointments     = "appointments/mine"
	topicMessages           = "messages:"
	topicAuth               = "auth"
	topicDoctorAppointments = "doctor/appointments"
	topicUsers              = "users"
	topicAppointments       = "appointments"
)

var (
	errForbidden    = errors.New("forbidden")
	errUnknownTopic = errors.New("unknown topic")
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Any origin; the session token gates access.
	},
}

var liveClients = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "tabib",
	Subsystem: "live",
	Name:      "clients",
	Help:      "Websocket clients currently connected.",
})

// ClientMessage is sent by live clients to change their subscriptions.
type ClientMessage struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

// Event is pushed to a client each time a subscribed topic changes, and
// once when a subscription is refused.
type Event struct {
	Topic string `json:"topic"`
	Data  any    `json:"data"`
	Error string `json:"error,omitempty"`
}

// Client is one websocket connection. Its subscriptions are only touched by
// its read pump.
type Client struct {
	ID   string
	Send chan []byte

	sess   *auth.Session
	ctx    context.Context
	cancel context.CancelFunc
	subs   map[string]store.Unsubscribe
	h      *Handler
}

// push queues ev for the write pump. Events for a closed client, or beyond
// a full buffer, are dropped.
func (cl *Client) push(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		cl.h.Log.Error().Err(err).Str("topic", ev.Topic).Msg("live: marshal event")
		return
	}
	select {
	case <-cl.ctx.Done():
		return
	default:
	}
	select {
	case cl.Send <- data:
	case <-cl.ctx.Done():
	default:
		cl.h.Log.Warn().Str("client", cl.ID).Str("topic", ev.Topic).Msg("live: send buffer full, event dropped")
	}
}

func (cl *Client) unsubscribe(topic string) {
	if unsub, ok := cl.subs[topic]; ok {
		unsub()
		delete(cl.subs, topic)
	}
}

func (cl *Client) close() {
	cl.cancel()
	for topic := range cl.subs {
		cl.unsubscribe(topic)
	}
}

// Live upgrades the request to a websocket and streams the topics the
// client subscribes to.
func (h *Handler) Live(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Log.Warn().Err(err).Msg("live: upgrade failed")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	cl := &Client{
		ID:     uuid.New().String(),
		Send:   make(chan []byte, 256),
		sess:   middleware.Session(c),
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[string]store.Unsubscribe),
		h:      h,
	}
	liveClients.Inc()

	go h.writePump(cl, ws)
	go h.readPump(cl, ws)
}

func (h *Handler) readPump(cl *Client, ws *websocket.Conn) {
	defer func() {
		cl.close()
		ws.Close()
		liveClients.Dec()
	}()

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue // Ignore malformed messages.
		}
		h.processMessage(cl, msg)
	}
}

func (h *Handler) writePump(cl *Client, ws *websocket.Conn) {
	defer ws.Close()

	for {
		select {
		case message := <-cl.Send:
			if err := ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-cl.ctx.Done():
			return
		}
	}
}

func (h *Handler) processMessage(cl *Client, msg ClientMessage) {
	for _, topic := range msg.Topics {
		switch msg.Action {
		case "subscribe":
			if _, ok := cl.subs[topic]; ok {
				continue
			}
			unsub, err := h.listen(cl, topic)
			if err != nil {
				cl.push(Event{Topic: topic, Error: liveError(err)})
				continue
			}
			cl.subs[topic] = unsub
		case "unsubscribe":
			cl.unsubscribe(topic)
		}
	}
}

// listen attaches the service listener behind topic, after checking the
// client may follow it.
func (h *Handler) listen(cl *Client, topic string) (store.Unsubscribe, error) {
	ctx, sess := cl.ctx, cl.sess
	send := func(data any) { cl.push(Event{Topic: topic, Data: data}) }

	switch {
	case topic == topicDoctors:
		return h.Svc.GetAllDoctors(func(list []models.Doctor) { send(list) }), nil

	case strings.HasPrefix(topic, topicDoctorsBySpecialty):
		specialty := strings.TrimPrefix(topic, topicDoctorsBySpecialty)
		return h.Svc.GetDoctorsBySpecialty(specialty, func(list []models.Doctor) { send(list) }), nil

	case topic == topicMyAppointments:
		return h.Svc.GetUserAppointments(sess.UID, func(list []models.Appointment) {
			h.sendViews(cl, topic, list, h.Svc.PatientViews)
		}), nil

	case strings.HasPrefix(topic, topicMessages):
		appt, err := h.Svc.GetAppointment(ctx, strings.TrimPrefix(topic, topicMessages))
		if err != nil {
			return nil, err
		}
		if !h.Svc.CanAccessAppointment(ctx, sess, appt) {
			return nil, errForbidden
		}
		return h.Svc.GetAppointmentMessages(appt.ID, func(list []models.Message) { send(list) }), nil

	case topic == topicAuth:
		return h.Auth.OnAuthStateChange(sess.UID, func(s *auth.Session) { send(s) }), nil

	case topic == topicDoctorAppointments:
		d, err := h.Svc.GetDoctorByEmail(ctx, sess.Email)
		if err != nil {
			return nil, errForbidden
		}
		return h.Svc.GetDoctorAppointments(d.ID, func(list []models.Appointment) {
			h.sendViews(cl, topic, list, h.Svc.DoctorViews)
		}), nil

	case topic == topicUsers:
		if !h.Svc.IsAdmin(ctx, sess) {
			return nil, errForbidden
		}
		return h.Svc.GetAllUsers(func(list []models.User) { send(list) }), nil

	case topic == topicAppointments:
		if !h.Svc.IsAdmin(ctx, sess) {
			return nil, errForbidden
		}
		return h.Svc.GetAllAppointments(func(list []models.Appointment) {
			h.sendViews(cl, topic, list, h.Svc.AdminViews)
		}), nil
	}
	return nil, errUnknownTopic
}

type viewBuilder func(context.Context, []models.Appointment) ([]services.AppointmentView, error)

func (h *Handler) sendViews(cl *Client, topic string, list []models.Appointment, build viewBuilder) {
	views, err := build(cl.ctx, list)
	if err != nil {
		if cl.ctx.Err() == nil {
			h.Log.Error().Err(err).Str("topic", topic).Msg("live: build appointment views")
		}
		return
	}
	cl.push(Event{Topic: topic, Data: views})
}

func liveError(err error) string {
	switch {
	case errors.Is(err, errForbidden):
		return "forbidden"
	case errors.Is(err, errUnknownTopic):
		return "unknown topic"
	case errors.Is(err, services.ErrNotFound):
		return "not found"
	default:
		return "subscription failed"
	}
}
