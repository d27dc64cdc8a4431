// Package engine содержит алгоритмическое ядро выполнения flow.
//
// Включает:
//   - graph.go    — индекс графа: входящие/исходящие рёбра, триггеры
//   - validate.go — валидация графа (висячие рёбра, handles, циклы)
//   - resolve.go  — порядок выполнения узлов и батчи для параллельного режима
//   - template.go — рендеринг Go templates ({{ .Trigger.x }}, {{ .Nodes.id.Output.y }})
//
// Все функции пакета чистые: они читают flow и ничего в нём не меняют.
package engine
