// Package flowio реализует перенос flow между установками.
//
// Export отдаёт переносимый документ (JSON или YAML) без ID и статуса,
// Import создаёт из него новый flow в статусе draft.
package flowio
