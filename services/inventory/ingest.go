package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultSubject is the NATS subject accepted check-ins are announced on.
const DefaultSubject = "inventory.checkin.recorded"

const publishTimeout = 2 * time.Second

// Recorder is the write side of the store.
type Recorder interface {
	RecordCheckin(ctx context.Context, evt Event, state State) (int64, error)
}

// Publisher announces committed check-ins.
type Publisher interface {
	Publish(ctx context.Context, subject string, v any) error
}

type checkinRecorded struct {
	ID           int64     `json:"id"`
	LaptopSerial string    `json:"laptop_serial"`
	Hostname     string    `json:"hostname"`
	IPAddress    string    `json:"ip_address"`
	LoggedInUser *string   `json:"logged_in_user,omitempty"`
	Timestamp    time.Time `json:"timestamp_utc"`
}

// IngestorOption customises an Ingestor.
type IngestorOption func(*Ingestor)

// WithPublisher announces every committed check-in on subject.
func WithPublisher(p Publisher, subject string) IngestorOption {
	return func(i *Ingestor) {
		i.pub = p
		if subject != "" {
			i.subject = subject
		}
	}
}

// WithLogger sets the logger used for debug and notification output.
func WithLogger(l zerolog.Logger) IngestorOption {
	return func(i *Ingestor) { i.log = l }
}

// Ingestor turns raw check-in bodies into committed store writes.
type Ingestor struct {
	store     Recorder
	validator *Validator
	pub       Publisher
	subject   string
	log       zerolog.Logger
	tracer    trace.Tracer
}

// NewIngestor constructs an Ingestor for the provided dependencies.
func NewIngestor(store Recorder, validator *Validator, opts ...IngestorOption) (*Ingestor, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if validator == nil {
		return nil, errors.New("validator is required")
	}

	i := &Ingestor{
		store:     store,
		validator: validator,
		subject:   DefaultSubject,
		log:       zerolog.Nop(),
		tracer:    otel.Tracer("inventoryd/services/inventory"),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Ingest decodes, validates and records one check-in body. The returned
// error is always an *Error.
func (i *Ingestor) Ingest(ctx context.Context, body []byte) (Event, error) {
	ctx, span := i.tracer.Start(ctx, "inventory.ingest")
	defer span.End()

	in, err := Decode(body)
	if err != nil {
		return Event{}, i.fail(span, err)
	}
	span.SetAttributes(attribute.String("inventory.laptop_serial", in.LaptopSerial))

	if err := i.validator.Validate(in); err != nil {
		return Event{}, i.fail(span, err)
	}

	ts, err := time.Parse(time.RFC3339, in.TimestampUTC)
	if err != nil {
		return Event{}, i.fail(span, NewError(KindInvalid, err))
	}

	drives := in.RawDrives()
	evt := Event{
		LaptopSerial: in.LaptopSerial,
		Hostname:     in.Hostname,
		IPAddress:    in.IPAddress,
		LoggedInUser: in.LoggedInUser,
		Timestamp:    ts,
		Drives:       drives,
	}
	state := State{
		LaptopSerial: in.LaptopSerial,
		Hostname:     in.Hostname,
		IPAddress:    in.IPAddress,
		LoggedInUser: in.LoggedInUser,
		LastSeen:     ts,
		Drives:       drives,
	}

	id, err := i.store.RecordCheckin(ctx, evt, state)
	if err != nil {
		return Event{}, i.fail(span, NewError(KindStorage, err))
	}
	evt.ID = id

	i.log.Debug().
		Int64("checkin_id", evt.ID).
		Str("laptop_serial", evt.LaptopSerial).
		Str("hostname", evt.Hostname).
		Str("ip_address", evt.IPAddress).
		Str("timestamp_utc", in.TimestampUTC).
		Int("drives", len(in.Drives)).
		Msg("check-in recorded")

	i.notify(ctx, evt)
	return evt, nil
}

func (i *Ingestor) fail(span trace.Span, err error) error {
	span.SetAttributes(attribute.String("inventory.error_kind", KindOf(err).String()))
	span.SetStatus(codes.Error, KindOf(err).String())
	return err
}

// notify is best effort and never changes the outcome of an ingest.
func (i *Ingestor) notify(ctx context.Context, evt Event) {
	if i.pub == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	msg := checkinRecorded{
		ID:           evt.ID,
		LaptopSerial: evt.LaptopSerial,
		Hostname:     evt.Hostname,
		IPAddress:    evt.IPAddress,
		LoggedInUser: evt.LoggedInUser,
		Timestamp:    evt.Timestamp.UTC(),
	}
	if err := i.pub.Publish(ctx, i.subject, msg); err != nil {
		i.log.Warn().Err(err).Str("subject", i.subject).Int64("checkin_id", evt.ID).Msg("publish check-in notification")
	}
}
