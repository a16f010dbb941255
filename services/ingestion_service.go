package services

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"helios-ledger/interfaces"
	"helios-ledger/numeric"

	"github.com/sirupsen/logrus"
)

// timestampLayouts are tried in order; zone-less layouts are read as UTC
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999999",
}

// TradeEvent is a validated trade-closure event
type TradeEvent struct {
	RawEntryTime string
	EntryTime    time.Time
	ExitTime     time.Time
	Direction    interfaces.Direction
	EntryPrice   float64
	ExitPrice    float64
	PnLPct       float64
	ExitReason   string
}

// IngestResult is returned to the webhook caller
type IngestResult struct {
	Success bool    `json:"success"`
	TradeID string  `json:"trade_id"`
	Balance float64 `json:"balance"`
}

// IngestionService authenticates, validates and stores closed trades
type IngestionService struct {
	store     interfaces.LedgerStore
	rebuilder *SnapshotRebuilder
	secret    []byte
	logger    *logrus.Logger
}

// NewIngestionService creates the write path. A nil store leaves ingestion
// unconfigured; every accepted request then fails with ErrNotConfigured.
func NewIngestionService(store interfaces.LedgerStore, rebuilder *SnapshotRebuilder, secret string, log *logrus.Logger) *IngestionService {
	return &IngestionService{
		store:     store,
		rebuilder: rebuilder,
		secret:    []byte(secret),
		logger:    log,
	}
}

// Authenticate compares the presented secret with the configured one in
// constant time. An unconfigured secret rejects everything.
func (s *IngestionService) Authenticate(presented string) error {
	if len(s.secret) == 0 || presented == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(presented), s.secret) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// Ingest validates body, upserts the trade and rebuilds the live snapshots.
// A failed rebuild does not undo the trade write.
func (s *IngestionService) Ingest(ctx context.Context, body []byte) (*IngestResult, error) {
	event, err := ParseTradeEvent(body)
	if err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, ErrNotConfigured
	}

	trade := &interfaces.Trade{
		ID:         TradeID(event.RawEntryTime, event.Direction),
		EntryTime:  event.EntryTime,
		ExitTime:   event.ExitTime,
		Direction:  event.Direction,
		EntryPrice: event.EntryPrice,
		ExitPrice:  event.ExitPrice,
		PnLPct:     numeric.Round(event.PnLPct, 4),
		ExitReason: event.ExitReason,
		Source:     interfaces.SourceLive,
	}

	if err := s.store.UpsertTrade(ctx, trade); err != nil {
		return nil, &StorageError{Op: "upsert_trade", Err: err}
	}

	s.logger.WithFields(logrus.Fields{
		"trade_id":    trade.ID,
		"direction":   trade.Direction,
		"pnl_pct":     trade.PnLPct,
		"exit_reason": trade.ExitReason,
	}).Info("Trade ingested")

	result, err := s.rebuilder.Rebuild(ctx, interfaces.SourceLive)
	if err != nil {
		s.logger.WithError(err).WithField("trade_id", trade.ID).Error("Trade stored but snapshot rebuild failed")
		return nil, err
	}

	return &IngestResult{
		Success: true,
		TradeID: trade.ID,
		Balance: result.FinalBalance,
	}, nil
}

// TradeID derives the deterministic trade identifier from the raw entry
// timestamp and direction.
func TradeID(rawEntryTime string, direction interfaces.Direction) string {
	sum := sha256.Sum256([]byte(rawEntryTime + ":" + string(direction)))
	return "trd_" + hex.EncodeToString(sum[:])[:12]
}

// ParseTradeEvent decodes and validates a trade-closure payload. Unknown
// fields, including any size or dollar amounts, are dropped.
func ParseTradeEvent(body []byte) (*TradeEvent, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return nil, ErrMalformedRequest
	}

	event := &TradeEvent{}

	if err := decodeString(fields, "entry_time", &event.RawEntryTime); err != nil {
		return nil, err
	}
	entry, err := parseTimestamp(event.RawEntryTime)
	if err != nil {
		return nil, &ValidationError{Field: "entry_time", Reason: err.Error()}
	}
	event.EntryTime = entry

	// "type" is the wire name; "direction" is accepted from older senders.
	directionField := "type"
	if _, ok := fields["type"]; !ok {
		if _, ok := fields["direction"]; ok {
			directionField = "direction"
		}
	}
	var rawDirection string
	if err := decodeString(fields, directionField, &rawDirection); err != nil {
		return nil, err
	}
	switch interfaces.Direction(strings.ToUpper(strings.TrimSpace(rawDirection))) {
	case interfaces.DirectionLong:
		event.Direction = interfaces.DirectionLong
	case interfaces.DirectionShort:
		event.Direction = interfaces.DirectionShort
	default:
		return nil, &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown direction %q", rawDirection)}
	}

	if err := decodeNumber(fields, "entry_price", &event.EntryPrice); err != nil {
		return nil, err
	}

	var rawExitTime string
	if err := decodeString(fields, "exit_time", &rawExitTime); err != nil {
		return nil, err
	}
	exit, err := parseTimestamp(rawExitTime)
	if err != nil {
		return nil, &ValidationError{Field: "exit_time", Reason: err.Error()}
	}
	if exit.Before(entry) {
		return nil, &ValidationError{Field: "exit_time", Reason: "exit_time is before entry_time"}
	}
	event.ExitTime = exit

	if err := decodeNumber(fields, "exit_price", &event.ExitPrice); err != nil {
		return nil, err
	}
	if err := decodeNumber(fields, "pnl_pct", &event.PnLPct); err != nil {
		return nil, err
	}
	if err := decodeString(fields, "exit_reason", &event.ExitReason); err != nil {
		return nil, err
	}

	return event, nil
}

func decodeString(fields map[string]json.RawMessage, name string, dst *string) error {
	raw, ok := fields[name]
	if !ok || isJSONNull(raw) {
		return missingField(name)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &ValidationError{Field: name, Reason: "must be a string"}
	}
	return nil
}

func decodeNumber(fields map[string]json.RawMessage, name string, dst *float64) error {
	raw, ok := fields[name]
	if !ok || isJSONNull(raw) {
		return missingField(name)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &ValidationError{Field: name, Reason: "must be a number"}
		}
		return &ValidationError{Field: name, Reason: err.Error()}
	}
	return nil
}

func isJSONNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", raw)
}
