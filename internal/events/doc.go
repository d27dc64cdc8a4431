// Package events содержит поток событий выполнения run.
//
// Emitter — единственный писатель для одного run: он сериализует события
// под мьютексом, проставляет монотонные timestamps и синхронно доставляет
// их подписчикам в порядке эмиссии.
//
// Event — tagged union: NodeStarted, NodeCompleted, LogAppended, RunCompleted.
//
// Подписчики:
//   - Callbacks   — четыре callback'а (onNodeStart, onNodeComplete, onLog, onComplete)
//   - Broadcaster — fan-out в буферизованные каналы (websocket, тесты)
//   - SubscriberFunc — произвольная функция
package events
