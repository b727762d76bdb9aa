package models

// ConditionRecord is one forecast entry taken from data.conditions[].am.
type ConditionRecord struct {
	Rating    string `json:"rating"`
	MaxHeight int    `json:"max_height"` // ft
	MinHeight int    `json:"min_height"` // ft
}
