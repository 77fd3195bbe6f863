package ban

import (
	"strconv"

	"modpulse/internal/model"
	"modpulse/internal/store"
)

// RoundSource reports the current round/session marker denormalized into ban
// records. Zero means no round is running.
type RoundSource interface {
	CurrentRound() int64
}

// StoreRounds keeps the round counter in the runtime config table so it
// survives process restarts.
type StoreRounds struct {
	store *store.Store
}

func NewStoreRounds(st *store.Store) *StoreRounds {
	return &StoreRounds{store: st}
}

func (r *StoreRounds) CurrentRound() int64 {
	value := r.store.ConfigValue(model.ConfigKeyRoundID)
	if value == "" {
		return 0
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// Advance increments the round counter and returns the new round id.
func (r *StoreRounds) Advance() int64 {
	next := r.CurrentRound() + 1
	_ = r.store.SetConfigValue(model.ConfigKeyRoundID, strconv.FormatInt(next, 10))
	return next
}
