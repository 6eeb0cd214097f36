package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/harentsoaR/tabib-api/internal/models"
)

// Notifier tells a patient that a doctor confirmed or cancelled their
// appointment. Implementations must not block the caller for long.
type Notifier interface {
	AppointmentStatusChanged(ctx context.Context, patient *models.User, appt *models.Appointment)
}

type NopNotifier struct{}

func (NopNotifier) AppointmentStatusChanged(context.Context, *models.User, *models.Appointment) {}

const textbeltURL = "https://textbelt.com/text"

// SMSNotifier sends appointment updates through the Textbelt API.
type SMSNotifier struct {
	apiKey   string
	endpoint string
	client   *http.Client
	log      zerolog.Logger
}

func NewSMSNotifier(apiKey string, log zerolog.Logger) *SMSNotifier {
	return &SMSNotifier{
		apiKey:   apiKey,
		endpoint: textbeltURL,
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      log.With().Str("component", "sms").Logger(),
	}
}

func (n *SMSNotifier) AppointmentStatusChanged(ctx context.Context, patient *models.User, appt *models.Appointment) {
	if patient.Phone == "" {
		n.log.Info().Str("uid", patient.UID).Msg("SMS not sent: patient has no phone number")
		return
	}
	if err := n.send(ctx, patient.Phone, smsBody(appt)); err != nil {
		n.log.Warn().Err(err).Str("uid", patient.UID).Msg("failed to send SMS")
		return
	}
	n.log.Info().Str("uid", patient.UID).Str("appointment", appt.ID).Msg("SMS sent")
}

func smsBody(appt *models.Appointment) string {
	verb := "confirmé"
	if appt.Status == models.StatusCancelled {
		verb = "annulé"
	}
	return fmt.Sprintf("Tabib: votre rendez-vous avec %s le %s à %s a été %s.", appt.DoctorName, appt.Date, appt.Time, verb)
}

func (n *SMSNotifier) send(ctx context.Context, phone, message string) error {
	body, err := json.Marshal(map[string]string{
		"phone":   phone,
		"message": message,
		"key":     n.apiKey,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("textbelt request: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("textbelt response: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("textbelt: %s", result.Error)
	}
	return nil
}
