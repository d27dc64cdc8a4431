// Package nodes содержит реестр типов узлов (NodeRegistry) и их поведение.
//
// Каждый тип реализует Kind: определение (handles, схема свойств),
// сообщение о старте и Execute.
//
// Встроенные типы:
//   - manual-trigger, webhook-trigger, schedule-trigger — точки входа
//   - http-request   — HTTP запрос к внешнему API
//   - ai-completion  — генерация текста через OpenAI-совместимый API
//   - code-node      — произвольный JavaScript (goja)
//   - json-transform — трансформация через Go templates
//   - if-node, switch-node, merge-node — логика
//   - console-log, email-node, telegram-node — вывод
//
// DemoRegistry симулирует все типы случайной задержкой. Сбои вносятся
// отдельно через FaultInjector, который использует executor.
package nodes
