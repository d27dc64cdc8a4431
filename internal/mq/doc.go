// Package mq связывает движок с RabbitMQ.
//
//   - connection.go — соединение с переподключением
//   - topology.go   — exchanges, queues, bindings
//   - publisher.go  — запросы на запуск и пересылка событий run
//   - consumer.go   — потребление очереди с ack/nack и DLQ
//   - runs.go       — обработчик runs.requested (запуски с trigger "event")
//
// Exchanges:
//   - flowforge.runs   — запросы на запуск flow
//   - flowforge.events — события run (topic, "run.<kind>")
//   - flowforge.dlq    — dead letter queue
package mq
