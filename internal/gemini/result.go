package gemini

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Classification is the structured answer for one detected object. Numeric
// fields tolerate the model returning them as strings or floats.
type Classification struct {
	Nom          string    `json:"nom"`
	Categorie    string    `json:"categorie"`
	CategorieID  string    `json:"categorie_id"`
	Quantite     FlexInt   `json:"quantite"`
	Etat         string    `json:"etat"`
	Fiabilite    FlexInt   `json:"fiabilite"`
	PrixUnitaire FlexFloat `json:"prix_unitaire_estime"`
	PrixNeuf     FlexFloat `json:"prix_neuf_estime"`
}

func (c *Classification) normalize() {
	c.Nom = strings.TrimSpace(c.Nom)
	c.Categorie = strings.TrimSpace(c.Categorie)
	c.CategorieID = strings.TrimSpace(c.CategorieID)
	c.Etat = strings.TrimSpace(c.Etat)
	if c.Quantite < 0 {
		c.Quantite = 0
	}
	if c.Fiabilite < 0 {
		c.Fiabilite = 0
	}
	if c.Fiabilite > 100 {
		c.Fiabilite = 100
	}
	if c.PrixUnitaire < 0 {
		c.PrixUnitaire = 0
	}
	if c.PrixNeuf < 0 {
		c.PrixNeuf = 0
	}
}

// FlexInt decodes from a JSON number, numeric string, or null. Garbage
// decodes to zero rather than failing the whole classification.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	*f = 0
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		data = []byte(strings.TrimSpace(s))
	}
	if parsed, err := strconv.ParseFloat(strings.ReplaceAll(string(data), ",", "."), 64); err == nil {
		*f = FlexInt(parsed)
	}
	return nil
}

// FlexFloat decodes from a JSON number, numeric string (dot or comma
// decimals), or null, defaulting to zero on garbage.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	*f = 0
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		data = []byte(strings.TrimSpace(s))
	}
	if parsed, err := strconv.ParseFloat(strings.ReplaceAll(string(data), ",", "."), 64); err == nil {
		*f = FlexFloat(parsed)
	}
	return nil
}
