// Package contact implements the CRM contact core: single-record upsert,
// bulk import with merge semantics, tag/list classification, custom field
// synchronization, and engagement stats.
//
// The service layer contains all business logic and depends only on the
// repository and collaborator interfaces defined in this package. It should
// never import from api/.
//
// Repository implementations live in repository/postgres/.
package contact
