// Package schema holds the GraphQL schema shared by the server and its clients.
package schema

import _ "embed"

//go:embed schema.graphql
var SDL string
