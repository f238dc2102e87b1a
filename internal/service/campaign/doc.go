// Package campaign implements campaign lifecycle management.
//
// The service layer contains all business logic for creating, preflighting,
// sending, and completing bulk email campaigns. It depends on the Repository
// interface defined in this package and should never import from api/.
//
// The repository implementation lives in repository/postgres/.
package campaign
