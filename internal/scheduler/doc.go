// Package scheduler запускает flows по cron-расписанию.
//
// Расписание задаётся узлами schedule-trigger внутри активных flows
// (свойства schedule и timezone). Scheduler периодически перечитывает
// flows и запускает те, у которых наступило время.
//
// Структура:
//   - scheduler.go — Scheduler (Tick, Run, NextDue)
//   - cron.go      — парсинг cron-выражений и вычисление следующего времени
//
// Использование:
//
//	sched := scheduler.New(scheduler.Config{
//	    Flows:  flowStore,
//	    Start:  startFunc, // публикация в RabbitMQ или запуск в процессе
//	    Logger: logger,
//	})
//
//	if err := sched.Run(ctx, 30*time.Second); err != nil && !errors.Is(err, context.Canceled) {
//	    logger.Error("scheduler stopped", "error", err)
//	}
//
// Next due хранится в памяти процесса: запускайте один экземпляр.
package scheduler
