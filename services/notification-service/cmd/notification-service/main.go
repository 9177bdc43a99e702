package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/petcare-labs/clinibook/libs/config"
	"github.com/petcare-labs/clinibook/libs/db"
	"github.com/petcare-labs/clinibook/libs/httpx"
	"github.com/petcare-labs/clinibook/libs/kafkax"
	otelx "github.com/petcare-labs/clinibook/libs/otel"
	"github.com/petcare-labs/clinibook/libs/runtime"
	"github.com/petcare-labs/clinibook/services/notification-service/internal/consumer"
	"github.com/petcare-labs/clinibook/services/notification-service/internal/email"
	"github.com/petcare-labs/clinibook/services/notification-service/internal/inbox"
	"github.com/petcare-labs/clinibook/services/notification-service/internal/outbox"
	"github.com/petcare-labs/clinibook/services/notification-service/internal/storage"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	topicAssigned = "clinic.booking.assigned.v1"
	topicReminder = "clinic.booking.reminder.v1"
	topicReleased = "clinic.booking.released.v1"
)

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8085")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	inboxRepo := inbox.NewRepository(pool)
	notificationsRepo := storage.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	smtpHost := config.String("SMTP_HOST", "mailpit")
	smtpPort := config.String("SMTP_PORT", "1025")
	smtpFrom := config.String("SMTP_FROM", "no-reply@clinibook.local")
	var sender email.Sender = email.NewSMTPSender(smtpHost, smtpPort, smtpFrom)

	brokers := config.String("KAFKA_BROKERS", "")
	groupID := config.String("KAFKA_GROUP_ID", "notification-service")

	outboxPublisher := outbox.NewPublisher(pool, logger, brokers)
	go outboxPublisher.Run(ctx)

	// deliver sends the rendered message and records the attempt: an audit
	// row plus a sent/failed outcome event. A send failure is returned so
	// the caller can log it.
	deliver := func(ctx context.Context, eventType, bookingID string, msg email.Message, payload []byte) error {
		status := "sent"
		outcome := outbox.EventNotificationSent
		sendErr := sender.Send(msg)
		errText := ""
		if sendErr != nil {
			status = "failed"
			outcome = outbox.EventNotificationFailed
			errText = sendErr.Error()
		}
		if err := notificationsRepo.Insert(ctx, storage.Notification{
			BookingID: bookingID,
			EventType: eventType,
			Channel:   "email",
			Recipient: msg.To,
			Payload:   payload,
			Status:    status,
			Error:     errText,
		}); err != nil {
			logger.Error("failed to persist notification", "err", err, "booking_id", bookingID)
		}
		outcomePayload, err := json.Marshal(map[string]any{
			"booking_id":   bookingID,
			"event_type":   eventType,
			"channel":      "email",
			"recipient":    msg.To,
			"error_reason": errText,
			"recorded_at":  time.Now().UTC().Format(time.RFC3339),
		})
		if err == nil {
			err = outboxRepo.Record(ctx, outbox.Event{
				AggregateType: "notification",
				AggregateID:   bookingID,
				EventType:     outcome,
				Payload:       outcomePayload,
			})
		}
		if err != nil {
			logger.Error("failed to enqueue delivery outcome", "err", err, "booking_id", bookingID)
		}
		return sendErr
	}

	startConsumer := func(topic string, handle consumer.HandleFunc) {
		if strings.TrimSpace(topic) == "" {
			return
		}
		c := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   topic,
		}, handle)
		go c.Run(ctx)
	}

	startConsumer(topicAssigned, func(ctx context.Context, msg kafka.Message) error {
		var p email.AssignmentPayload
		if err := json.Unmarshal(msg.Value, &p); err != nil {
			logger.Error("invalid assignment payload", "err", err)
			return nil
		}
		if p.BookingID == "" || p.StaffEmail == "" {
			logger.Error("assignment payload missing booking_id or staff_email")
			return nil
		}
		return deliver(ctx, topicAssigned, p.BookingID, email.BuildAssignment(p), msg.Value)
	})

	startConsumer(topicReminder, func(ctx context.Context, msg kafka.Message) error {
		var p email.ReminderPayload
		if err := json.Unmarshal(msg.Value, &p); err != nil {
			logger.Error("invalid reminder payload", "err", err)
			return nil
		}
		if p.BookingID == "" || p.ClientEmail == "" {
			logger.Error("reminder payload missing booking_id or client_email")
			return nil
		}
		return deliver(ctx, topicReminder, p.BookingID, email.BuildReminder(p), msg.Value)
	})

	startConsumer(topicReleased, func(ctx context.Context, msg kafka.Message) error {
		var p email.ReleasePayload
		if err := json.Unmarshal(msg.Value, &p); err != nil {
			logger.Error("invalid release payload", "err", err)
			return nil
		}
		if p.BookingID == "" || p.StaffEmail == "" {
			logger.Error("release payload missing booking_id or staff_email")
			return nil
		}
		return deliver(ctx, topicReleased, p.BookingID, email.BuildRelease(p), msg.Value)
	})

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
