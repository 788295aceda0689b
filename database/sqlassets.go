package sqlassets

import "embed"

//go:embed schema/catalog/catalog.sql
var CatalogSQL string

// TenantMigrations holds the ordered tenant-database DDL files. Files are
// applied in lexicographic order; keep the numeric prefixes contiguous.
//
//go:embed schema/tenant/*.sql
var TenantMigrations embed.FS

// TenantMigrationsDir is the path prefix inside TenantMigrations.
const TenantMigrationsDir = "schema/tenant"
