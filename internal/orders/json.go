package orders

import (
	"encoding/json"
	"strings"
)

// UnmarshalJSON accepts the backend's `_id` spelling as an alias of `id`.
func (o *Order) UnmarshalJSON(data []byte) error {
	type alias Order
	aux := struct {
		*alias
		MongoID string `json:"_id"`
	}{alias: (*alias)(o)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if strings.TrimSpace(o.ID) == "" {
		o.ID = aux.MongoID
	}
	return nil
}

func (a *AgentRef) UnmarshalJSON(data []byte) error {
	type alias AgentRef
	aux := struct {
		*alias
		MongoID string `json:"_id"`
	}{alias: (*alias)(a)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if strings.TrimSpace(a.ID) == "" {
		a.ID = aux.MongoID
	}
	return nil
}

func (a *AgencyRef) UnmarshalJSON(data []byte) error {
	type alias AgencyRef
	aux := struct {
		*alias
		MongoID string `json:"_id"`
	}{alias: (*alias)(a)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if strings.TrimSpace(a.ID) == "" {
		a.ID = aux.MongoID
	}
	return nil
}

func (i *Item) UnmarshalJSON(data []byte) error {
	type alias Item
	aux := struct {
		*alias
		Product string `json:"product"`
		Variant string `json:"variant"`
	}{alias: (*alias)(i)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if i.ProductID == "" {
		i.ProductID = aux.Product
	}
	if i.VariantLabel == "" {
		i.VariantLabel = aux.Variant
	}
	return nil
}
