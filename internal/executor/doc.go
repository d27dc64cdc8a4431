// Package executor выполняет отдельные узлы flow.
//
// Executor.Execute:
//  1. Находит тип узла в nodes.Registry (нет типа — ErrUnknownNodeKind)
//  2. Применяет значения свойств по умолчанию и рендерит шаблоны
//  3. Сообщает стартовое сообщение через RunContext.OnStart
//  4. Выполняет попытки: FaultInjector, затем Kind.Execute;
//     повторы по FlowSettings.RetryOnFail/RetryCount/RetryDelayMs
//  5. Возвращает NodeResult с выходом, сообщениями и временем
//
// Паника в поведении узла не роняет run: она становится NodeError.
package executor
