// Package models contains the GORM persistence models.
//
// Domain types stay free of ORM tags; each model converts to and from its
// domain counterpart with ToDomain / FromDomain.
package models
