package inventory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/almoxarifado/almoxarifado/internal/shared"
)

// RawMovementRequest is the loosely typed movement payload accepted over HTTP.
// Numeric fields may arrive as JSON numbers or numeric strings.
type RawMovementRequest struct {
	Type       string          `json:"type"`
	ItemID     json.RawMessage `json:"item_id"`
	LocationID json.RawMessage `json:"location_id"`
	Quantity   json.RawMessage `json:"quantity"`
	Note       string          `json:"note"`
}

var typeAliases = map[string]MovementType{
	"ENTRY":   MovementEntry,
	"ENTRADA": MovementEntry,
	"EXIT":    MovementExit,
	"SAIDA":   MovementExit,
	"SAÍDA":   MovementExit,
}

// ParseMovementRequest turns a raw payload into a typed request. Actor and
// idempotency key come from the transport and are set by the caller.
func ParseMovementRequest(raw RawMovementRequest) (MovementRequest, error) {
	typ, ok := typeAliases[strings.ToUpper(strings.TrimSpace(raw.Type))]
	if !ok {
		return MovementRequest{}, fmt.Errorf("type must be ENTRY or EXIT: %w", shared.ErrValidation)
	}
	itemID, err := parseInteger("item_id", raw.ItemID)
	if err != nil {
		return MovementRequest{}, err
	}
	locationID, err := parseInteger("location_id", raw.LocationID)
	if err != nil {
		return MovementRequest{}, err
	}
	quantity, err := parseInteger("quantity", raw.Quantity)
	if err != nil {
		return MovementRequest{}, err
	}
	return MovementRequest{
		Type:       typ,
		ItemID:     itemID,
		LocationID: locationID,
		Quantity:   quantity,
		Note:       strings.TrimSpace(raw.Note),
	}, nil
}

func parseInteger(field string, raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, fmt.Errorf("%s is required: %w", field, shared.ErrValidation)
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, fmt.Errorf("%s: %w", field, shared.ErrValidation)
		}
		text = strings.TrimSpace(text)
	}
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", field, shared.ErrValidation)
	}
	return v, nil
}
