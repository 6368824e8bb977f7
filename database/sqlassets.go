// Package database embeds the registry's DDL so binaries stay self-contained.
package database

import _ "embed"

//go:embed schema/001_schemas.sql
var SchemasSQL string

//go:embed schema/002_definitions.sql
var DefinitionsSQL string
