// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and nfsquota contributors
//
// SPDX-License-Identifier: Apache-2.0

package quotastateconsumer

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// StartNatsConsumer subscribes c to the configured subject. The
// subscription is drained when ctx is done.
func StartNatsConsumer(ctx context.Context, c *Consumer) error {
	nc, err := nats.Connect(c.cfg.NatsURL)
	if err != nil {
		return fmt.Errorf("error connecting to nats: %w", err)
	}

	_, err = nc.Subscribe(c.cfg.NatsSubject, func(m *nats.Msg) {
		if _, err := c.HandleMessage(m.Data); err != nil {
			log.Error().Err(err).Msg("error unmarshalling quota events")
		}
	})
	if err != nil {
		nc.Close()
		return fmt.Errorf("error subscribing to nats subject: %w", err)
	}

	go func() {
		<-ctx.Done()
		if err := nc.Drain(); err != nil {
			log.Error().Err(err).Msg("error draining nats connection")
		}
	}()
	return nil
}
