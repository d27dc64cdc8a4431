// Package telemetry — логирование процесса и Prometheus метрики.
//
// logging.go настраивает slog по LOG_LEVEL и LOG_FORMAT и дублирует
// логи run в процессный логгер. metrics.go описывает метрики runs,
// узлов и потока событий; бинарники отдают их на /metrics.
package telemetry
