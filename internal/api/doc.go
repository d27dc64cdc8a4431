// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go         — Handler с DI (хранилища, контроллер, publisher, logger)
//   - routes.go          — регистрация маршрутов
//   - middleware.go      — middleware (logging, recovery, CORS)
//   - response.go        — унифицированные JSON-ответы и обработка ошибок
//   - dto.go             — Data Transfer Objects (request/response)
//   - flow_handler.go    — /flows: CRUD, preview, validate, import/export
//   - run_handler.go     — /runs и запуск flow
//   - webhook_handler.go — /webhook/{path}: запуск по webhook-trigger
//   - stream.go          — /runs/stream: события run по websocket
//
// Маршрут "/webhook/{path...}" принимает любой метод: метод сверяется
// со свойством method узла webhook-trigger.
package api
