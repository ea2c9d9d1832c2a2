// Package database provides connection management for postgres, mysql and
// sqlite through Bun, YAML configuration with environment overrides, a model
// registry with table and index migrations, query logging hooks, SQL error
// classification and the logger facade shared by the module.
package database
