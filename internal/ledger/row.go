package ledger

import (
	"fmt"
	"strconv"
	"strings"
)

// Column headers are fixed French labels for spreadsheet compatibility with
// ledgers produced by earlier versions of the tool.
const (
	ColID                = "ID"
	ColFichier           = "Fichier Original"
	ColImage             = "Image"
	ColCategorie         = "Categorie"
	ColCategorieID       = "Categorie ID"
	ColFiabilite         = "Fiabilite"
	ColPrixUnitaire      = "Prix Unitaire"
	ColPrixNeuf          = "Prix Neuf Estime"
	ColPrixTotal         = "Prix Total"
	ColNom               = "Nom"
	ColEtat              = "Etat"
	ColQuantite          = "Quantite"
	ColRemarques         = "Remarques"
	ColRemarquesTraitees = "Remarques traitées"
)

// knownColumns is the column order used for new ledgers. Image is skipped
// when thumbnails are disabled.
var knownColumns = []string{
	ColID, ColFichier, ColImage, ColCategorie, ColCategorieID, ColFiabilite,
	ColPrixUnitaire, ColPrixNeuf, ColPrixTotal,
	ColNom, ColEtat, ColQuantite, ColRemarques, ColRemarquesTraitees,
}

// Row is one inventory record.
type Row struct {
	ID                int
	Fichier           string
	Image             string
	Nom               string
	Categorie         string
	CategorieID       string
	Quantite          int
	Etat              string
	Fiabilite         int
	PrixUnitaire      float64
	PrixNeuf          float64
	PrixTotal         float64
	Remarques         string
	RemarquesTraitees string
	// Extra holds values of configured or unrecognized columns so a
	// rewrite never drops data the reader did not model.
	Extra map[string]string
}

// Field returns the value for a column header, formatted for the CSV.
func (r Row) Field(column, decimal string) string {
	switch column {
	case ColID:
		return strconv.Itoa(r.ID)
	case ColFichier:
		return r.Fichier
	case ColImage:
		return r.Image
	case ColNom:
		return r.Nom
	case ColCategorie:
		return r.Categorie
	case ColCategorieID:
		return r.CategorieID
	case ColQuantite:
		return strconv.Itoa(r.Quantite)
	case ColEtat:
		return r.Etat
	case ColFiabilite:
		return strconv.Itoa(r.Fiabilite)
	case ColPrixUnitaire:
		return formatPrice(r.PrixUnitaire, decimal)
	case ColPrixNeuf:
		return formatPrice(r.PrixNeuf, decimal)
	case ColPrixTotal:
		return formatPrice(r.PrixTotal, decimal)
	case ColRemarques:
		return r.Remarques
	case ColRemarquesTraitees:
		return r.RemarquesTraitees
	default:
		return r.Extra[column]
	}
}

// SetField parses a CSV value into the matching row field. Unknown columns
// land in Extra.
func (r *Row) SetField(column, value string) {
	switch column {
	case ColID:
		r.ID = parseInt(value)
	case ColFichier:
		r.Fichier = value
	case ColImage:
		r.Image = value
	case ColNom:
		r.Nom = value
	case ColCategorie:
		r.Categorie = value
	case ColCategorieID:
		r.CategorieID = value
	case ColQuantite:
		r.Quantite = parseInt(value)
	case ColEtat:
		r.Etat = value
	case ColFiabilite:
		r.Fiabilite = parseInt(value)
	case ColPrixUnitaire:
		r.PrixUnitaire = parsePrice(value)
	case ColPrixNeuf:
		r.PrixNeuf = parsePrice(value)
	case ColPrixTotal:
		r.PrixTotal = parsePrice(value)
	case ColRemarques:
		r.Remarques = value
	case ColRemarquesTraitees:
		r.RemarquesTraitees = value
	default:
		if r.Extra == nil {
			r.Extra = make(map[string]string)
		}
		r.Extra[column] = value
	}
}

// RecomputeTotal refreshes Prix Total after quantity or price edits.
func (r *Row) RecomputeTotal() {
	r.PrixTotal = r.PrixUnitaire * float64(r.Quantite)
}

func formatPrice(value float64, decimal string) string {
	formatted := fmt.Sprintf("%.2f", value)
	if decimal == "," {
		formatted = strings.Replace(formatted, ".", ",", 1)
	}
	return formatted
}

func parsePrice(value string) float64 {
	value = strings.TrimSpace(strings.ReplaceAll(value, ",", "."))
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return parsed
}

func parseInt(value string) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if parsed, err := strconv.Atoi(value); err == nil {
		return parsed
	}
	// Spreadsheets sometimes save integers as "3.0".
	if parsed, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", "."), 64); err == nil {
		return int(parsed)
	}
	return 0
}
