package realtime

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// PGListener LISTENs on Channel over a dedicated connection and publishes
// decoded events to a Broker.
type PGListener struct {
	connString string
	broker     *Broker
	retry      time.Duration
}

// NewPGListener creates a listener for the database at connString.
func NewPGListener(connString string, broker *Broker) *PGListener {
	return &PGListener{connString: connString, broker: broker, retry: 2 * time.Second}
}

// Run listens until ctx is done, reconnecting after connection errors.
func (l *PGListener) Run(ctx context.Context) error {
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		log.Warn().Err(err).Dur("retry_in", l.retry).Msg("notification listener disconnected")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(l.retry):
		}
	}
}

func (l *PGListener) listen(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.connString)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		return err
	}
	log.Info().Str("channel", Channel).Msg("listening for bar events")

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		l.dispatch([]byte(n.Payload))
	}
}

func (l *PGListener) dispatch(payload []byte) {
	ev, err := Decode(payload)
	if err != nil {
		log.Warn().Err(err).Msg("dropping malformed bar event")
		return
	}
	if ev == nil {
		return
	}
	l.broker.Publish(ev)
}
