package gemini

import (
	"fmt"
	"strings"
)

// Request carries one image and its prompt context through a classification
// call.
type Request struct {
	ImageData []byte
	MimeType  string
	// Context is the folder-level instruction text, reused verbatim for
	// every photo of the folder.
	Context string
	// Hint is a human-supplied correction, only set on rescans.
	Hint string
	// Previous is the row being corrected, only set on rescans.
	Previous *Classification
	// CategoryBlock is the rendered category registry ("id | name" lines).
	CategoryBlock string
	// Target names a specific element to count, for counting mode.
	Target string
}

const singleItemPrompt = `Analyse cette photo pour un inventaire.
Identifie l'objet principal et cherche une quantité manuscrite ou imprimée sur un papier à côté.
Relève aussi tout texte utile sur le papier (taille, état, détails).

Réponds UNIQUEMENT avec un objet JSON portant ces clés :
- "nom" : nom court et descriptif de l'objet (en français), incluant les détails relevés (ex. "Gants de travail - Taille 9").
- "categorie" : le NOM d'une catégorie de la liste fournie.
- "categorie_id" : l'ID correspondant dans la liste fournie.
- "quantite" : la quantité lue sur le papier, sinon une estimation, sinon 1. Entier.
- "etat" : état apparent de l'objet (ex. "Neuf", "Bon état", "Abimé").
- "fiabilite" : ta confiance dans cette analyse, entier de 0 à 100.
- "prix_unitaire_estime" : prix unitaire d'occasion estimé en euros. Nombre.
- "prix_neuf_estime" : prix neuf estimé en euros. Nombre.`

const multiItemPrompt = `Analyse cette photo pour un inventaire.
La photo peut contenir PLUSIEURS objets distincts : sépare-les.

Réponds UNIQUEMENT avec un tableau JSON, un élément par objet distinct, chaque élément portant les clés :
"nom", "categorie", "categorie_id", "quantite", "etat", "fiabilite", "prix_unitaire_estime", "prix_neuf_estime"
(mêmes définitions que pour un inventaire classique : nom court en français, catégorie prise dans la liste fournie, quantite et fiabilite entiers, prix en euros).`

func buildPrompt(base string, req Request) string {
	sections := []string{base}

	if block := strings.TrimSpace(req.CategoryBlock); block != "" {
		sections = append(sections, "Liste des catégories autorisées (ID | Nom) :\n"+block)
	}
	if ctx := strings.TrimSpace(req.Context); ctx != "" {
		sections = append(sections, "Instructions pour ce dossier :\n"+ctx)
	}
	if target := strings.TrimSpace(req.Target); target != "" {
		sections = append(sections, fmt.Sprintf("Compte uniquement les éléments de ce type : %s. Ignore tout le reste.", target))
	}
	if req.Previous != nil {
		sections = append(sections, fmt.Sprintf(
			"Analyse précédente (à corriger) : nom=%q, categorie=%q, quantite=%d, etat=%q.",
			req.Previous.Nom, req.Previous.Categorie, int(req.Previous.Quantite), req.Previous.Etat))
	}
	if hint := strings.TrimSpace(req.Hint); hint != "" {
		sections = append(sections, "Indication de l'utilisateur (prioritaire) : "+hint)
	}

	return strings.Join(sections, "\n\n")
}
