package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/transfa/fund-service/internal/domain"
	"github.com/transfa/fund-service/internal/store"
)

// NAVUpdateConsumer applies NAV updates published by the admin console.
type NAVUpdateConsumer struct {
	funds *FundService
}

func NewNAVUpdateConsumer(funds *FundService) *NAVUpdateConsumer {
	return &NAVUpdateConsumer{funds: funds}
}

// HandleMessage returns false only when the message should be redelivered.
func (c *NAVUpdateConsumer) HandleMessage(body []byte) bool {
	var event domain.NAVUpdatedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("nav-consumer: failed to unmarshal payload: %v", err)
		return true
	}

	if event.FundID == uuid.Nil {
		log.Printf("nav-consumer: missing fund id in event %+v", event)
		return true
	}
	if !event.NAV.IsPositive() {
		log.Printf("nav-consumer: ignoring non-positive nav %s for fund %s", event.NAV, event.FundID)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := c.funds.ApplyNAV(ctx, event.FundID, event.NAV, event.AsOf); err != nil {
		if errors.Is(err, store.ErrFundNotFound) {
			log.Printf("nav-consumer: no fund %s; acknowledging", event.FundID)
			return true
		}
		log.Printf("nav-consumer: processing error for fund %s: %v", event.FundID, err)
		return false
	}

	log.Printf("nav-consumer: fund %s nav set to %s", event.FundID, event.NAV)
	return true
}
