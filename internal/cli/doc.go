// Package cli реализует инструмент командной строки FlowForge.
//
// # Обзор
//
// CLI работает в двух режимах:
//   - удалённые команды ходят в FlowForge API по HTTP (Client);
//   - локальные команды (check, order, exec) работают с файлом flow
//     напрямую через движок, без сервера.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для FlowForge API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок. Не импортирует internal/api.
//
//	client := cli.NewClient("http://localhost:8080")
//	flows, err := client.ListFlows()
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: flowforge flow list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - flow: list, create, show, update, delete, duplicate, preview, validate, export, import
//   - run: list, start, show, cancel, delete
//   - stats
//   - check, order, exec — локально, по файлу flow (JSON или YAML)
//
// Каждая группа создаётся через фабричную функцию (NewFlowCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
