// Package store реализует хранение flows и runs.
//
// Нижний уровень — key-value интерфейс Store с тремя backend'ами:
//   - MemoryStore — в памяти процесса (по умолчанию)
//   - RedisStore — hash на бакет в Redis
//   - PostgresStore — таблица flowforge_kv в PostgreSQL
//
// Поверх Store работают FlowStore и RunStore. RunStore хранит
// ограниченную историю: самые старые runs вытесняются.
package store
