// Package gemini implements the vision classifier client. One image plus
// folder context goes in, a structured classification (nom, categorie,
// quantite, fiabilite, prix) comes back. The client is stateless: it never
// caches, and every call is a single synchronous request guarded by the
// shared retry/breaker executor and a request-rate limiter.
package gemini
