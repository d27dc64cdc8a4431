// Package orchestrator управляет выполнением runs.
//
// Controller отвечает за:
//   - Валидацию flow (ошибка — run не создаётся)
//   - Вычисление порядка выполнения узлов
//   - Выполнение узлов через executor (по одному или параллельно по готовности)
//   - Машину состояний run: pending → running → success/failed/cancelled
//   - Эмиссию событий node-start, node-complete, log, run-complete
//   - Сохранение завершённого run в RunStore
//
// Первый упавший узел останавливает run: следующие узлы не запускаются.
// Controller — это "мозг" движка, который координирует выполнение.
package orchestrator
