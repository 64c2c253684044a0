package payment

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/comicvault/credits/pkg/config"
)

// EventDecoder decodes the purchase event described by the configured ABI.
type EventDecoder struct {
	event        abi.Event
	buyerField   string
	creditsField string
	amountField  string
}

// NewEventDecoder parses the ABI fragment and checks that the configured
// fields exist on the event with usable types.
func NewEventDecoder(cfg config.EventConfig) (*EventDecoder, error) {
	parsed, err := abi.JSON(strings.NewReader(cfg.ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse event ABI: %w", err)
	}
	event, ok := parsed.Events[cfg.Name]
	if !ok {
		return nil, fmt.Errorf("event %q not found in ABI", cfg.Name)
	}

	fields := []struct {
		name string
		ty   byte
	}{
		{cfg.BuyerField, abi.AddressTy},
		{cfg.CreditsField, abi.UintTy},
		{cfg.AmountField, abi.UintTy},
	}
	for _, f := range fields {
		arg, found := findInput(event.Inputs, f.name)
		if !found {
			return nil, fmt.Errorf("event %s has no input %q", cfg.Name, f.name)
		}
		if arg.Type.T != f.ty {
			return nil, fmt.Errorf("event %s input %q has unsupported type %s", cfg.Name, f.name, arg.Type.String())
		}
	}

	return &EventDecoder{
		event:        event,
		buyerField:   cfg.BuyerField,
		creditsField: cfg.CreditsField,
		amountField:  cfg.AmountField,
	}, nil
}

// ID is the topic0 hash of the event.
func (d *EventDecoder) ID() common.Hash {
	return d.event.ID
}

// Find returns the first purchase event emitted by contract in logs.
func (d *EventDecoder) Find(logs []*types.Log, contract common.Address) (*PurchaseEvent, error) {
	for _, lg := range logs {
		if lg == nil || lg.Address != contract || len(lg.Topics) == 0 || lg.Topics[0] != d.event.ID {
			continue
		}
		return d.Decode(lg)
	}
	return nil, ErrEventNotFound
}

// Decode unpacks both indexed and data fields of a purchase log.
func (d *EventDecoder) Decode(lg *types.Log) (*PurchaseEvent, error) {
	if len(lg.Topics) == 0 || lg.Topics[0] != d.event.ID {
		return nil, ErrEventNotFound
	}

	values := make(map[string]any)
	if err := d.event.Inputs.NonIndexed().UnpackIntoMap(values, lg.Data); err != nil {
		return nil, fmt.Errorf("failed to unpack event data: %w", err)
	}

	var indexed abi.Arguments
	for _, arg := range d.event.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if err := abi.ParseTopicsIntoMap(values, indexed, lg.Topics[1:]); err != nil {
		return nil, fmt.Errorf("failed to unpack event topics: %w", err)
	}

	buyer, ok := values[d.buyerField].(common.Address)
	if !ok {
		return nil, fmt.Errorf("event field %q is not an address", d.buyerField)
	}
	credits, ok := toBigInt(values[d.creditsField])
	if !ok {
		return nil, fmt.Errorf("event field %q is not an integer", d.creditsField)
	}
	amount, ok := toBigInt(values[d.amountField])
	if !ok {
		return nil, fmt.Errorf("event field %q is not an integer", d.amountField)
	}

	return &PurchaseEvent{Buyer: buyer, Credits: credits, AmountPaid: amount}, nil
}

// toBigInt widens a decoded uint. The ABI decoder returns native Go integers
// for widths up to 64 bits and *big.Int above that.
func toBigInt(v any) (*big.Int, bool) {
	switch n := v.(type) {
	case *big.Int:
		return n, n != nil
	case uint8:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint16:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint32:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint64:
		return new(big.Int).SetUint64(n), true
	default:
		return nil, false
	}
}

func findInput(args abi.Arguments, name string) (abi.Argument, bool) {
	for _, arg := range args {
		if arg.Name == name {
			return arg, true
		}
	}
	return abi.Argument{}, false
}
